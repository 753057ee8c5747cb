package excel

import "strings"

// ReaderConfig holds configuration for the spreadsheet reader
type ReaderConfig struct {
	// Sheet to read from a workbook. Empty means the first sheet.
	Sheet string `json:"sheet"`
	// NAValues are cell texts treated as missing, compared after trimming.
	NAValues []string `json:"na_values"`
}

// DefaultNAValues are the placeholder texts spreadsheets commonly use for
// "no value". "NA" is deliberately absent: it is a legitimate region code.
var DefaultNAValues = []string{
	"#N/A", "#N/A N/A", "#NA", "#NULL!", "N/A", "n/a", "NaN", "nan", "-NaN", "-nan", "NULL", "null", "<NA>",
}

// DefaultReaderConfig returns sensible defaults for reading entitlement workbooks
func DefaultReaderConfig() ReaderConfig {
	na := make([]string, len(DefaultNAValues))
	copy(na, DefaultNAValues)
	return ReaderConfig{NAValues: na}
}

func (c ReaderConfig) naSet() map[string]bool {
	set := make(map[string]bool, len(c.NAValues))
	for _, v := range c.NAValues {
		set[strings.TrimSpace(v)] = true
	}
	return set
}
