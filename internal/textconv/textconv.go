// Package textconv converts legacy-encoded text files (GBK, Big5) to
// UTF-8 in place across a directory tree. Files already valid as UTF-8
// are left untouched.
package textconv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"stockdaily/pkg/logx"
)

// DefaultExtensions are the file types worth converting.
var DefaultExtensions = []string{".py", ".md", ".txt", ".yml", ".yaml", ".sh", ".csv", ".json"}

// DefaultSkips are path fragments that exclude a file from conversion.
var DefaultSkips = []string{".git", "node_modules", "__pycache__", ".venv", "venv", "dist", "build"}

// Stats counts the outcome of one walk.
type Stats struct {
	Checked   int
	Converted int
	Unchanged int
	Failed    int
}

// Converter walks a tree and rewrites matching files as UTF-8.
type Converter struct {
	root       string
	extensions []string
	skips      []string
	dryRun     bool
	log        logx.Logger
}

type namedDecoder struct {
	name string
	enc  encoding.Encoding
}

// GBK first: it covers the common case and also decodes plain ASCII
// identically, so order only matters for ambiguous bytes.
var decoders = []namedDecoder{
	{"gbk", simplifiedchinese.GBK},
	{"big5", traditionalchinese.Big5},
}

func New(root string, dryRun bool, log logx.Logger) *Converter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Converter{
		root:       root,
		extensions: DefaultExtensions,
		skips:      DefaultSkips,
		dryRun:     dryRun,
		log:        log,
	}
}

// SetExtensions overrides the file types considered.
func (c *Converter) SetExtensions(exts []string) { c.extensions = exts }

// Run walks the tree and converts every matching file.
func (c *Converter) Run() (*Stats, error) {
	stats := &Stats{}
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if c.skip(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.skip(path) || !c.wantExt(path) {
			return nil
		}
		stats.Checked++
		switch converted, err := c.convertFile(path); {
		case err != nil:
			stats.Failed++
			c.log.Warn("conversion failed", logx.String("file", path), logx.Err(err))
		case converted:
			stats.Converted++
		default:
			stats.Unchanged++
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	c.log.Info("conversion finished",
		logx.Int("checked", stats.Checked),
		logx.Int("converted", stats.Converted),
		logx.Int("failed", stats.Failed))
	return stats, nil
}

func (c *Converter) skip(path string) bool {
	for _, s := range c.skips {
		if strings.Contains(path, s) {
			return true
		}
	}
	return false
}

func (c *Converter) wantExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range c.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (c *Converter) convertFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if utf8.Valid(data) {
		return false, nil
	}
	out, name, err := Decode(data)
	if err != nil {
		return false, err
	}
	if c.dryRun {
		c.log.Info("would convert", logx.String("file", path), logx.String("from", name))
		return true, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return false, err
	}
	c.log.Info("converted", logx.String("file", path), logx.String("from", name))
	return true, nil
}

// Decode tries each known legacy encoding and returns the first decoding
// that yields valid UTF-8, along with the encoding's name.
func Decode(data []byte) ([]byte, string, error) {
	for _, d := range decoders {
		out, err := d.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if !utf8.Valid(out) {
			continue
		}
		// Replacement runes mean the decoder papered over bad input.
		if strings.ContainsRune(string(out), utf8.RuneError) {
			continue
		}
		return out, d.name, nil
	}
	return nil, "", errors.New("no known encoding decodes this file")
}

// ConvertTree is the one-call entry point used by the command.
func ConvertTree(root string, dryRun bool, log logx.Logger) (*Stats, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return New(root, dryRun, log).Run()
}
