package worker

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/types"
)

// Parser performs keyword-level EEPROM I/O. Errors carry their ErrorType
// (see package fault).
type Parser interface {
	ReadKeyword(ctx context.Context, hwPath types.Path, params types.ReadParams) (types.BinaryVector, error)
	WriteKeyword(ctx context.Context, hwPath types.Path, params types.WriteParams) (int, error)
	Parse(ctx context.Context, hwPath types.Path) (types.ParsedVPD, error)
}

// MemoryParser keeps EEPROM images in memory. Used by tests and dry runs.
// Failures can be injected per path.
type MemoryParser struct {
	mu        sync.Mutex
	images    map[types.Path]types.ParsedVPD
	readErrs  map[types.Path]error
	writeErrs map[types.Path]error
	writes    []types.Path
}

// NewMemoryParser creates an empty MemoryParser.
func NewMemoryParser() *MemoryParser {
	return &MemoryParser{
		images:    make(map[types.Path]types.ParsedVPD),
		readErrs:  make(map[types.Path]error),
		writeErrs: make(map[types.Path]error),
	}
}

// SetImage replaces the image at hwPath.
func (p *MemoryParser) SetImage(hwPath types.Path, vpd types.ParsedVPD) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.images[hwPath] = vpd.Clone()
}

// Image returns a copy of the image at hwPath.
func (p *MemoryParser) Image(hwPath types.Path) (types.ParsedVPD, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	vpd, ok := p.images[hwPath]
	if !ok {
		return nil, false
	}
	return vpd.Clone(), true
}

// FailReads makes every read and parse of hwPath return err. A nil err
// clears the failure.
func (p *MemoryParser) FailReads(hwPath types.Path, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	setOrClear(p.readErrs, hwPath, err)
}

// FailWrites makes every write to hwPath return err. A nil err clears the
// failure.
func (p *MemoryParser) FailWrites(hwPath types.Path, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	setOrClear(p.writeErrs, hwPath, err)
}

// Writes returns every attempted write target, in order.
func (p *MemoryParser) Writes() []types.Path {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Path(nil), p.writes...)
}

// ReadKeyword implements Parser.
func (p *MemoryParser) ReadKeyword(ctx context.Context, hwPath types.Path, params types.ReadParams) (types.BinaryVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.ReadFailure(hwPath, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readErrs[hwPath]; err != nil {
		return nil, fault.ReadFailure(hwPath, err)
	}
	vpd, ok := p.images[hwPath]
	if !ok {
		return nil, fault.ReadFailure(hwPath, syscall.ENODEV)
	}
	val, ok := vpd.Lookup(params)
	if !ok {
		return nil, fault.ReadFailure(hwPath, fmt.Errorf("keyword %s not found", params))
	}
	return append(types.BinaryVector(nil), val...), nil
}

// WriteKeyword implements Parser. The keyword must already exist.
func (p *MemoryParser) WriteKeyword(ctx context.Context, hwPath types.Path, params types.WriteParams) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, fault.WriteFailure(hwPath, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writes = append(p.writes, hwPath)
	if err := p.writeErrs[hwPath]; err != nil {
		return -1, fault.WriteFailure(hwPath, err)
	}
	vpd, ok := p.images[hwPath]
	if !ok {
		return -1, fault.WriteFailure(hwPath, syscall.ENODEV)
	}
	if _, ok := vpd.Lookup(params.ReadParams); !ok {
		return -1, fault.WriteFailure(hwPath, fmt.Errorf("keyword %s not found", params.ReadParams))
	}
	vpd.Set(params.ReadParams, params.Value)
	return len(params.Value), nil
}

// Parse implements Parser.
func (p *MemoryParser) Parse(ctx context.Context, hwPath types.Path) (types.ParsedVPD, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.ReadFailure(hwPath, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readErrs[hwPath]; err != nil {
		return nil, fault.ReadFailure(hwPath, err)
	}
	vpd, ok := p.images[hwPath]
	if !ok {
		return nil, fault.ReadFailure(hwPath, syscall.ENODEV)
	}
	return vpd.Clone(), nil
}

// LoadImages reads EEPROM images from YAML:
//
//	/sys/bus/i2c/drivers/at24/8-0050/eeprom:
//	  VINI:
//	    SN: YL10XX123456
//	    CC: "0x2E33"
//
// Values prefixed with 0x are hex. Keyword-format VPD uses the record "".
func (p *MemoryParser) LoadImages(r io.Reader) error {
	var raw map[string]map[string]map[string]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode images: %w", err)
	}
	for path, records := range raw {
		vpd := types.ParsedVPD{}
		for record, keywords := range records {
			for kw, text := range keywords {
				val, err := DecodeValue(text)
				if err != nil {
					return fmt.Errorf("image %s %s:%s: %w", path, record, kw, err)
				}
				vpd.Set(types.ReadParams{Record: record, Keyword: kw}, val)
			}
		}
		p.SetImage(path, vpd)
	}
	return nil
}

// DecodeValue parses a keyword value: 0x-prefixed text is hex, anything
// else is taken as raw bytes.
func DecodeValue(s string) ([]byte, error) {
	if hexText, ok := strings.CutPrefix(s, "0x"); ok {
		return hex.DecodeString(hexText)
	}
	return []byte(s), nil
}

func setOrClear(m map[types.Path]error, path types.Path, err error) {
	if err == nil {
		delete(m, path)
		return
	}
	m[path] = err
}

var _ Parser = (*MemoryParser)(nil)
