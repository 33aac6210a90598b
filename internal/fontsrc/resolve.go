/*
Package fontsrc turns the declared source of a font request into a URL the
measurement page can load.

Remote URLs and paths below a configured mount are used as given. Local
files are published on the content server; "system:<name>" sources are
located among the installed fonts first.
*/
package fontsrc

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/flopp/go-findfont"
	"github.com/npillmayer/schuko/tracing"
	"github.com/samber/lo"

	"font-metrics/internal/domain"
	"font-metrics/internal/measure"
	"font-metrics/internal/server"
)

// tracer traces to tracing key 'fontmetrics.fontsrc'.
func tracer() tracing.Trace {
	return tracing.Select("fontmetrics.fontsrc")
}

// SystemPrefix marks a source naming an installed font file.
const SystemPrefix = "system:"

// Kind classifies a font source.
type Kind int

const (
	KindNone    Kind = iota // no source, family expected to be installed
	KindRemote              // absolute URL loaded by the page as is
	KindMounted             // path below an additional mount
	KindSystem              // installed font file located by name
	KindLocal               // file on the local disk
)

func (k Kind) String() string {
	switch k {
	case KindRemote:
		return "remote"
	case KindMounted:
		return "mounted"
	case KindSystem:
		return "system"
	case KindLocal:
		return "local"
	default:
		return "none"
	}
}

// Publisher serves a local file and returns its URL path.
type Publisher interface {
	Publish(localPath string) (string, error)
}

var remoteSchemes = []string{"http", "https", "data", "blob"}

// Classify reports how source will be turned into a loadable URL.
func Classify(font domain.FontRequest, mounts []domain.Mount) Kind {
	source := strings.TrimSpace(font.SourceValue())
	if source == "" {
		return KindNone
	}
	if strings.HasPrefix(source, SystemPrefix) {
		return KindSystem
	}
	if u, err := url.Parse(source); err == nil && lo.Contains(remoteSchemes, strings.ToLower(u.Scheme)) {
		return KindRemote
	}
	for _, mount := range mounts {
		prefix := server.MountPrefix(mount.Alias)
		if prefix != "/" && strings.HasPrefix(source, prefix) {
			return KindMounted
		}
	}
	return KindLocal
}

// Resolver maps font requests to measurement faces.
type Resolver struct {
	find func(name string) (string, error)
	stat func(name string) (os.FileInfo, error)
}

// NewResolver constructs a resolver over the real file system.
func NewResolver() *Resolver {
	return &Resolver{
		find: findfont.Find,
		stat: os.Stat,
	}
}

// Resolve returns one face per request, in request order. Local and system
// files are published through pub. A file that cannot be found fails with
// FONT_LOAD_FAILED for its family.
func (r *Resolver) Resolve(fonts []domain.FontRequest, mounts []domain.Mount, pub Publisher) ([]measure.Face, error) {
	faces := make([]measure.Face, 0, len(fonts))
	for _, font := range fonts {
		face := measure.Face{FontFamily: font.FontFamily}
		source := strings.TrimSpace(font.SourceValue())

		switch kind := Classify(font, mounts); kind {
		case KindNone:
		case KindRemote, KindMounted:
			face.URL = &source
		case KindSystem, KindLocal:
			file, err := r.Locate(font, kind)
			if err != nil {
				return nil, domain.FontLoadFailed(font.FontFamily, err)
			}
			urlPath, err := pub.Publish(file)
			if err != nil {
				return nil, domain.FontLoadFailed(font.FontFamily, err)
			}
			face.URL = &urlPath
		}

		tracer().Debugf("font %q resolved to %v", font.FontFamily, lo.FromPtrOr(face.URL, "<installed>"))
		faces = append(faces, face)
	}
	return faces, nil
}

// Locate finds the file behind a system or local source. A bare file name
// that does not exist relative to the working directory is looked up among
// the installed fonts.
func (r *Resolver) Locate(font domain.FontRequest, kind Kind) (string, error) {
	source := strings.TrimSpace(font.SourceValue())

	if kind == KindSystem {
		name := strings.TrimSpace(strings.TrimPrefix(source, SystemPrefix))
		file, err := r.find(name)
		if err != nil {
			return "", fmt.Errorf("installed font %q: %w", name, err)
		}
		return file, nil
	}

	if u, err := url.Parse(source); err == nil && u.Scheme == "file" {
		source = u.Path
	}
	info, err := r.stat(source)
	if err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("font source %s is a directory", source)
		}
		return source, nil
	}
	if errors.Is(err, os.ErrNotExist) && filepath.Base(source) == source {
		if file, findErr := r.find(source); findErr == nil {
			return file, nil
		}
	}
	return "", fmt.Errorf("font source %s: %w", source, err)
}
