package pdf

import (
	"fmt"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"go.uber.org/zap"

	"h2p/convert/engine"
	"h2p/diag"
	"h2p/story"
)

// ensurePage starts new page when content is about to be placed and none
// is open.
func (rn *run) ensurePage() {
	if !rn.onPage && rn.mode == modeFlow {
		rn.newPage()
	}
}

func (rn *run) newPage() {
	tpl := rn.doc.Template(rn.tplName)
	rn.tpl = tpl
	rn.pdf.AddPageFormat("P", fpdf.SizeType{Wd: tpl.Width, Ht: tpl.Height})
	rn.pages++
	rn.tplPages[tpl.Name]++
	rn.onPage = true
	rn.float = nil

	if !rn.dry {
		rn.drawBackground(tpl)
	}
	for _, fr := range tpl.Frames {
		if fr.Static != nil {
			rn.drawStatic(fr)
		}
	}

	rn.flows = tpl.FlowFrames()
	if len(rn.flows) == 0 {
		rn.flows = []story.Frame{{
			Name:   "content",
			X:      fallbackMargin,
			Y:      fallbackMargin,
			Width:  tpl.Width - 2*fallbackMargin,
			Height: tpl.Height - 2*fallbackMargin,
		}}
	}
	rn.frame = 0
	rn.a = frameArea(rn.flows[0])
}

func frameArea(fr story.Frame) area {
	return area{x: fr.X, w: fr.Width, top: fr.Y, bottom: fr.Y + fr.Height, y: fr.Y}
}

// nextFrame moves cursor into the next flow frame of the page or onto a new
// page after the last one.
func (rn *run) nextFrame() {
	if rn.mode != modeFlow {
		return
	}
	if !rn.onPage {
		rn.newPage()
		return
	}
	rn.float = nil
	if rn.frame+1 < len(rn.flows) {
		rn.frame++
		rn.a = frameArea(rn.flows[rn.frame])
		return
	}
	rn.newPage()
}

// endPage closes current page, next placed content starts a new one.
func (rn *run) endPage() {
	if rn.mode == modeFlow {
		rn.onPage = false
	}
}

// place makes room for h points of content. Flowing content moves to the
// next frame when there is not enough space, static content is dropped.
func (rn *run) place(h float64) bool {
	rn.ensurePage()
	if rn.a.y+h <= rn.a.bottom+epsilon || rn.a.atTop() {
		return true
	}
	if rn.mode != modeFlow {
		return false
	}
	rn.nextFrame()
	return true
}

// vspace adds vertical gap between blocks, gaps at the top of an area are
// dropped.
func (rn *run) vspace(h float64) {
	if h <= 0 || rn.a.atTop() {
		return
	}
	rn.a.y = min(rn.a.y+h, max(rn.a.bottom, rn.a.y))
}

// drawStatic renders static frame content on the current page.
func (rn *run) drawStatic(fr story.Frame) {
	saved, savedMode, savedFloat, savedAlign := rn.a, rn.mode, rn.float, rn.cellAlign
	rn.mode, rn.a, rn.float, rn.cellAlign, rn.static = modeStatic, frameArea(fr), nil, "", true
	rn.drawStory(fr.Static)
	rn.a, rn.mode, rn.float, rn.cellAlign, rn.static = saved, savedMode, savedFloat, savedAlign, false
}

// background is page source document imported beneath template pages.
type background struct {
	imp    *gofpdi.Importer
	rs     io.ReadSeeker
	pages  int
	tplIDs map[int]int
	broken bool
}

func (rn *run) openBackgrounds(bgs []story.Background) {
	for _, bg := range bgs {
		rs, err := bg.Resource.Open()
		if err != nil {
			rn.log.Warn("Unable to open page background", zap.Stringer("background", bg.Resource), zap.Error(err))
			rn.problems = append(rn.problems, engine.Problem{
				Code: diag.CodeBackground,
				Msg:  fmt.Sprintf("unable to open background of template %q: %v", bg.Template, err),
			})
			continue
		}
		b := &background{imp: gofpdi.NewImporter(), rs: rs, tplIDs: make(map[int]int)}
		rn.bgs[bg.Template] = b
	}
}

// drawBackground places page of background document under the page. Page
// index counts pages of the template, shorter backgrounds repeat their last
// page.
func (rn *run) drawBackground(tpl *story.PageTemplate) {
	b := rn.bgs[tpl.Name]
	if b == nil || b.broken || tpl.Background == "" {
		return
	}
	if err := b.use(rn.pdf, rn.tplPages[tpl.Name], tpl.Width, tpl.Height); err != nil {
		b.broken = true
		rn.log.Warn("Unable to draw page background", zap.String("template", tpl.Name), zap.Error(err))
		rn.problems = append(rn.problems, engine.Problem{
			Code: diag.CodeBackground,
			Msg:  fmt.Sprintf("background of template %q not drawn: %v", tpl.Name, err),
		})
	}
}

// use draws background page. Importer reports problems with panics.
func (b *background) use(pdf *fpdf.Fpdf, page int, w, h float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("background import: %v", r)
		}
	}()
	if b.pages == 0 {
		b.tplIDs[1] = b.imp.ImportPageFromStream(pdf, &b.rs, 1, "/MediaBox")
		b.pages = max(len(b.imp.GetPageSizes()), 1)
	}
	page = min(max(page, 1), b.pages)
	id, ok := b.tplIDs[page]
	if !ok {
		id = b.imp.ImportPageFromStream(pdf, &b.rs, page, "/MediaBox")
		b.tplIDs[page] = id
	}
	b.imp.UseImportedTemplate(pdf, id, 0, 0, w, h)
	return nil
}
