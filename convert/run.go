package convert

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"h2p/archive"
	"h2p/config"
	"h2p/convert/engine"
	"h2p/convert/pdf"
	"h2p/misc"
	"h2p/resource"
	"h2p/state"
)

// errFailed is returned when at least one document of the batch was not
// converted, individual problems are logged as they happen.
var errFailed = errors.New("some documents were not converted")

// Run is convert subcommand action.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if err := env.LoadDefaultStyle(); err != nil {
		return fmt.Errorf("unable to read default stylesheet from %q: %w", env.Cfg.Document.StylesheetPath, err)
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")
	if cmd.Bool("report-on-error") {
		env.Cfg.Document.Fallback = config.FallbackModeReport
	}
	if cmd.Bool("single-pass") {
		env.Cfg.Document.MultiPass = false
	}
	if cmd.Bool("network") {
		env.Cfg.Document.Fetch.Enable = true
	}

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	if cp := cmd.String("force-zip-cp"); len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// batch counts documents of a single Run.
type batch struct {
	done, failed int
}

func (b *batch) result(err error) {
	if err != nil {
		b.failed++
		return
	}
	b.done++
}

// process determines the input type (directory, archive with optional path
// inside it, or single document) and processes it accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	var (
		b          batch
		head, tail string
	)
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}
		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exist - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, &b, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			pathIn := filepath.ToSlash(strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator)))
			if err := processArchive(ctx, head, pathIn, "", dst, &b, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		if isDocumentName(head) && len(tail) == 0 {
			b.result(processFile(ctx, head, filepath.Base(head), dst, log))
			break
		}
		return fmt.Errorf("input was not recognized as HTML document (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}

	log.Debug("Batch finished", zap.Int("converted", b.done), zap.Int("failed", b.failed))
	if b.failed > 0 {
		return fmt.Errorf("%w: %d of %d", errFailed, b.failed, b.done+b.failed)
	}
	return nil
}

// processDir finds documents and archives under dir and processes them in
// natural order of their paths.
func processDir(ctx context.Context, dir, dst string, b *batch, log *zap.Logger) error {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if info.Mode().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slices.SortFunc(paths, naturalCompare)

	count := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		isArchive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			continue
		}
		if isArchive {
			count++
			if err := processArchive(ctx, path, "", filepath.Dir(rel), dst, b, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
				b.failed++
			}
			continue
		}
		if !isDocumentName(path) {
			log.Debug("Skipping file, not recognized as document or archive", zap.String("file", path))
			continue
		}
		count++
		b.result(processFile(ctx, path, rel, dst, log))
	}
	if count == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
	}
	return nil
}

// processArchive extracts archive to a temporary directory, so documents
// can reference their images and stylesheets, and converts every document
// found under pathIn.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, b *batch, log *zap.Logger) (err error) {
	env := state.EnvFromContext(ctx)

	tmp, err := os.MkdirTemp("", misc.GetAppName()+"-zip-")
	if err != nil {
		return fmt.Errorf("unable to create temporary directory: %w", err)
	}
	defer func() {
		if er := os.RemoveAll(tmp); er != nil {
			log.Warn("Unable to remove temporary directory", zap.String("dir", tmp), zap.Error(er))
		}
	}()
	if err := archive.Extract(path, tmp); err != nil {
		return err
	}

	count := 0
	err = archive.Walk(path, pathIn, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !isDocumentName(f.Name) {
			log.Debug("Skipping file, not recognized as document", zap.String("archive", arc), zap.String("file", f.Name))
			return nil
		}
		count++

		name := f.Name
		if env.CodePage != nil && f.NonUTF8 {
			if n, err := env.CodePage.NewDecoder().String(name); err == nil {
				name = n
			} else {
				cs, _ := ianaindex.IANA.Name(env.CodePage)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", cs), zap.String("path", name), zap.Error(err))
			}
		}
		extracted := filepath.Join(tmp, filepath.FromSlash(f.Name))
		b.result(processFile(ctx, extracted, filepath.Join(pathOut, filepath.FromSlash(name)), dst, log))
		return nil
	})
	if err == nil && count == 0 {
		log.Debug("Nothing to process", zap.String("archive", path))
	}
	return err
}

func processFile(ctx context.Context, path, src, dst string, log *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		return err
	}
	defer f.Close()

	if err := processDocument(ctx, f, src, filepath.Dir(path), dst, log); err != nil {
		log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		return err
	}
	return nil
}

// processDocument converts single document. "src" is the source path
// relative to what was requested (base file name for a single file, path
// inside directory or archive otherwise), "base" is where document
// references are resolved from and "dst" is destination directory.
func processDocument(ctx context.Context, r io.Reader, src, base, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string
	log.Info("Conversion starting", zap.String("from", src))
	defer func(start time.Time) {
		// image decoders may panic on broken input, the rest of the batch
		// should still be processed
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else if rerr == nil {
			log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	renderer := pdf.New(pdf.Options{
		Compress: env.Cfg.Document.Compress,
		Producer: misc.GetAppName() + " " + misc.GetVersion(),
	}, log)

	var out bytes.Buffer
	res, err := engine.Convert(ctx, r, &out, renderer, engineOptions(env, base), log)
	if res != nil {
		storeDiagnostics(env, src, res)
		logDiagnostics(log, src, res)
	}
	if err != nil {
		return fmt.Errorf("unable to convert (%s): %w", src, err)
	}
	if res.Report {
		log.Warn("Document replaced with diagnostics report", zap.String("from", src), zap.Int("errors", res.Errors))
	}

	outputName = buildOutputPath(res.Document, src, dst, env)
	if err := prepareOutput(outputName, env.Overwrite, log); err != nil {
		return err
	}
	if err := os.WriteFile(outputName, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	rel, err := filepath.Rel(dst, outputName)
	if err != nil {
		rel = filepath.Base(outputName)
	}
	env.Rpt.Store("results/"+filepath.ToSlash(rel), outputName)
	return nil
}

// engineOptions maps configuration onto conversion options.
func engineOptions(env *state.LocalEnv, base string) engine.Options {
	doc := &env.Cfg.Document

	fallback := engine.FallbackRaise
	if doc.Fallback == config.FallbackModeReport {
		fallback = engine.FallbackReport
	}

	header := http.Header{}
	if doc.Fetch.UserAgent != "" {
		header.Set("User-Agent", doc.Fetch.UserAgent)
	}
	if doc.Fetch.Authorization != "" {
		header.Set("Authorization", string(doc.Fetch.Authorization))
	}

	return engine.Options{
		BasePath:   base,
		DefaultCSS: env.DefaultStyle,
		Page: engine.PageSetup{
			Size:      doc.Page.Size,
			Width:     doc.Page.Width,
			Height:    doc.Page.Height,
			Landscape: doc.Page.Orientation.Landscape(),
			Margins:   doc.Page.MarginsArray(),
		},
		FontName:     doc.Font.Name,
		BaseFontSize: doc.Font.Size,
		ImageZoom:    doc.ImageZoom,
		Fallback:     fallback,
		MultiPass:    doc.MultiPass,
		Fetch: resource.FetchOptions{
			Enabled: doc.Fetch.Enable,
			Timeout: doc.Fetch.Timeout,
			Header:  header,
		},
		Encoding:   doc.Encoding,
		TempPrefix: misc.GetAppName(),
	}
}

// prepareOutput makes sure output file can be written.
func prepareOutput(name string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(name); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		log.Warn("Overwriting existing file", zap.String("file", name))
		return os.Remove(name)
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

func logDiagnostics(log *zap.Logger, src string, res *engine.Result) {
	if res.Errors == 0 && res.Warnings == 0 {
		return
	}
	log.Info("Conversion diagnostics", zap.String("from", src),
		zap.Int("errors", res.Errors), zap.Int("warnings", res.Warnings), zap.Int("pages", res.Pages))
}

// storeDiagnostics puts full diagnostics log and flow dump of the document
// into debug report.
func storeDiagnostics(env *state.LocalEnv, src string, res *engine.Result) {
	if env.Rpt == nil {
		return
	}
	stamp := time.Now().UnixNano()
	if res.Document != nil {
		env.Rpt.StoreData(fmt.Sprintf("story/%s-%d.txt", filepath.ToSlash(src), stamp), []byte(res.Document.Dump()))
	}
	if res.Log == nil {
		return
	}
	var buf bytes.Buffer
	if _, err := res.Log.WriteTo(&buf); err != nil || buf.Len() == 0 {
		return
	}
	env.Rpt.StoreData(fmt.Sprintf("diagnostics/%s-%d.txt", filepath.ToSlash(src), stamp), buf.Bytes())
}
