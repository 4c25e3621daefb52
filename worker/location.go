package worker

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/types"
)

// Location code placeholders and the system VPD keywords that expand them.
const (
	placeholderFCS = "fcs"
	placeholderMTS = "mts"
)

var (
	keywordFC = types.IPZRead("VCEN", "FC")
	keywordFE = types.IPZRead("VCEN", "FE")
	keywordTM = types.IPZRead("VSYS", "TM")
	keywordSE = types.IPZRead("VSYS", "SE")
)

// KeywordSource provides published keyword values.
type KeywordSource interface {
	Keyword(invPath types.Path, params types.ReadParams) (types.BinaryVector, bool)
}

// ExpandLocationCode replaces the "fcs" or "mts" placeholder of an
// unexpanded location code with feature code or machine type values read
// from the system VPD published at systemPath:
//
//	Ufcs-P0  ->  U<FC[:4]>.ND0.<FE>-P0
//	Umts-P0  ->  U<TM with '-' as '.'>.<SE>-P0
//
// Codes without a placeholder are returned unchanged.
func ExpandLocationCode(unexpanded string, systemPath types.Path, src KeywordSource) (string, error) {
	var placeholder string
	var first, second types.ReadParams
	switch {
	case strings.Contains(unexpanded, placeholderFCS):
		placeholder, first, second = placeholderFCS, keywordFC, keywordFE
	case strings.Contains(unexpanded, placeholderMTS):
		placeholder, first, second = placeholderMTS, keywordTM, keywordSE
	default:
		return unexpanded, nil
	}

	v1, ok1 := src.Keyword(systemPath, first)
	v2, ok2 := src.Keyword(systemPath, second)
	if !ok1 || !ok2 {
		return "", fault.Internal("location-code", systemPath,
			fmt.Errorf("system VPD keywords %s, %s not published", first, second))
	}

	var expansion string
	if placeholder == placeholderFCS {
		fc := string(v1)
		if len(fc) > 4 {
			fc = fc[:4]
		}
		expansion = fc + ".ND0." + string(v2)
	} else {
		expansion = strings.ReplaceAll(string(v1), "-", ".") + "." + string(v2)
	}
	return strings.Replace(unexpanded, placeholder, expansion, 1), nil
}
