package tailf

import (
	"github.com/beevik/etree"
)

// newElement creates an unparented element in namespace ns.
func newElement(name, ns string) *etree.Element {
	el := etree.NewElement(name)
	el.CreateAttr("xmlns", ns)
	return el
}

// subElement appends a child element in namespace ns, declaring the namespace
// only when it differs from the parent's.
func subElement(parent *etree.Element, name, ns string) *etree.Element {
	el := parent.CreateElement(name)
	if ns != parent.NamespaceURI() {
		el.CreateAttr("xmlns", ns)
	}
	return el
}

// textElement appends a child element in namespace ns holding text.
func textElement(parent *etree.Element, name, ns, text string) *etree.Element {
	el := subElement(parent, name, ns)
	el.SetText(text)
	return el
}

// Serialize renders a request element as XML, without an xml declaration.
// The element is not modified.
func Serialize(node *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(node.Copy())
	return doc.WriteToString()
}

// defaultNamespace returns the default namespace in scope at el.
func defaultNamespace(el *etree.Element) string {
	for e := el; e != nil; e = e.Parent() {
		if a := e.SelectAttr("xmlns"); a != nil {
			return a.Value
		}
	}
	return ""
}
