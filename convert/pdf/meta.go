package pdf

import (
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"h2p/story"
)

const (
	nsRDF   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsDC    = "http://purl.org/dc/elements/1.1/"
	nsPDF   = "http://ns.adobe.com/pdf/1.3/"
	nsXMP   = "http://ns.adobe.com/xap/1.0/"
	nsXMPMM = "http://ns.adobe.com/xap/1.0/mm/"
)

// setMetadata fills document information dictionary and XMP packet.
func (rn *run) setMetadata(doc *story.Document, producer string, now time.Time) {
	m := doc.Meta
	subject := m.Subject
	if subject == "" {
		subject = m.Description
	}
	rn.pdf.SetTitle(m.Title, true)
	rn.pdf.SetAuthor(m.Author, true)
	rn.pdf.SetSubject(subject, true)
	rn.pdf.SetKeywords(m.Keywords, true)
	rn.pdf.SetCreator(m.Creator, true)
	rn.pdf.SetProducer(producer, true)
	rn.pdf.SetCreationDate(now)
	rn.pdf.SetModificationDate(now)

	packet, err := xmpPacket(doc, producer, now)
	if err != nil {
		rn.log.Warn("Unable to build XMP metadata", zap.Error(err))
		return
	}
	rn.pdf.SetXmpMetadata(packet)
}

// xmpPacket serializes document metadata as XMP.
func xmpPacket(doc *story.Document, producer string, now time.Time) ([]byte, error) {
	m := doc.Meta

	x := etree.NewDocument()
	x.CreateProcInst("xpacket", "begin=\"\ufeff\" id=\"W5M0MpCehiHzreSzNTczkc9d\"")
	meta := x.CreateElement("x:xmpmeta")
	meta.CreateAttr("xmlns:x", "adobe:ns:meta/")
	rdf := meta.CreateElement("rdf:RDF")
	rdf.CreateAttr("xmlns:rdf", nsRDF)

	desc := rdf.CreateElement("rdf:Description")
	desc.CreateAttr("rdf:about", "")
	desc.CreateAttr("xmlns:dc", nsDC)
	desc.CreateAttr("xmlns:pdf", nsPDF)
	desc.CreateAttr("xmlns:xmp", nsXMP)
	desc.CreateAttr("xmlns:xmpMM", nsXMPMM)

	desc.CreateElement("dc:format").SetText("application/pdf")
	if m.Title != "" {
		altText(desc, "dc:title", m.Title)
	}
	if m.Author != "" {
		desc.CreateElement("dc:creator").CreateElement("rdf:Seq").CreateElement("rdf:li").SetText(m.Author)
	}
	if m.Description != "" {
		altText(desc, "dc:description", m.Description)
	}
	if m.Language != "" {
		desc.CreateElement("dc:language").CreateElement("rdf:Bag").CreateElement("rdf:li").SetText(m.Language)
	}
	if m.Keywords != "" {
		desc.CreateElement("pdf:Keywords").SetText(m.Keywords)
	}
	desc.CreateElement("pdf:Producer").SetText(producer)
	if m.Creator != "" {
		desc.CreateElement("xmp:CreatorTool").SetText(m.Creator)
	}
	stamp := now.Format(time.RFC3339)
	desc.CreateElement("xmp:CreateDate").SetText(stamp)
	desc.CreateElement("xmp:ModifyDate").SetText(stamp)
	if doc.ID != "" {
		desc.CreateElement("xmpMM:DocumentID").SetText("uuid:" + doc.ID)
	}

	x.CreateProcInst("xpacket", `end="w"`)
	x.Indent(1)
	return x.WriteToBytes()
}

func altText(parent *etree.Element, tag, text string) {
	li := parent.CreateElement(tag).CreateElement("rdf:Alt").CreateElement("rdf:li")
	li.CreateAttr("xml:lang", "x-default")
	li.SetText(text)
}
