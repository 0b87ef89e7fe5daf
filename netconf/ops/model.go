package ops

import "encoding/xml"

// Configuration Datastores
const (
	RunningCfg   = "running"
	CandidateCfg = "candidate"
	StartupCfg   = "startup"
)

// Data holds the content of the data element of a reply.
type Data struct {
	XMLName xml.Name    `xml:"data"`
	Body    interface{} `xml:",any"`
	Content string      `xml:",innerxml"`
}
