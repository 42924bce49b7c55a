package loader

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brentp/vcfgo"
	"github.com/brentp/xopen"
	"github.com/sirupsen/logrus"

	"github.com/variant-lollipop-server/pkg/lollipop"
)

const (
	// DefaultPositionKey is the INFO key read for a precomputed protein position.
	DefaultPositionKey = "AA_POS"

	// SnpEff ANN subfields
	annAllele    = 0
	annGene      = 3
	annProtein   = 13
	annMinFields = 14
)

// VCFOptions controls how VCF records become variants.
type VCFOptions struct {
	// Gene keeps only ANN annotations of this gene. Empty keeps all.
	Gene string
	// PositionKey names an integer INFO field holding the protein position.
	PositionKey string
	// GenomicPosition uses POS as the variant start instead of a protein position.
	GenomicPosition bool
	// PassOnly drops records whose FILTER is neither PASS nor '.'.
	PassOnly bool
}

// VCFStats summarises one load.
type VCFStats struct {
	Records  int
	Variants int
	Skipped  int
}

// VCFLoader turns VCF records into lollipop variants.
type VCFLoader struct {
	opts   VCFOptions
	logger *logrus.Logger
}

// NewVCFLoader creates a loader.
func NewVCFLoader(opts VCFOptions, logger *logrus.Logger) *VCFLoader {
	if opts.PositionKey == "" {
		opts.PositionKey = DefaultPositionKey
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &VCFLoader{opts: opts, logger: logger}
}

// Load reads a plain, gzip or BGZF compressed VCF file.
func (l *VCFLoader) Load(path string) ([]lollipop.Variant, VCFStats, error) {
	rc, err := xopen.Ropen(path)
	if err != nil {
		return nil, VCFStats{}, fmt.Errorf("failed to open variant file: %w", err)
	}
	defer rc.Close()

	variants, stats, err := l.Read(rc)
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.WithFields(logrus.Fields{
		"path":     path,
		"records":  stats.Records,
		"variants": stats.Variants,
		"skipped":  stats.Skipped,
	}).Info("Loaded VCF")
	return variants, stats, nil
}

// Read parses an uncompressed VCF stream.
func (l *VCFLoader) Read(r io.Reader) ([]lollipop.Variant, VCFStats, error) {
	var (
		stats    VCFStats
		variants []lollipop.Variant
		seen     = make(map[string]int)
	)

	rdr, err := vcfgo.NewReader(r, false)
	if err != nil {
		return nil, stats, fmt.Errorf("invalid VCF header: %w", err)
	}
	if rdr.Header == nil || rdr.Header.FileFormat == "" {
		return nil, stats, fmt.Errorf("missing ##fileformat header")
	}

	for {
		v := rdr.Read()
		if v == nil {
			break
		}
		if v.Pos == 0 {
			if err := rdr.Error(); err != nil {
				return nil, stats, fmt.Errorf("line %d: %w", v.LineNumber, err)
			}
			return nil, stats, fmt.Errorf("line %d: invalid POS", v.LineNumber)
		}
		if err := rdr.Error(); err != nil {
			l.logger.WithError(err).WithField("line", v.LineNumber).Warn("VCF record parsed with errors")
		}
		rdr.Clear()

		stats.Records++
		if l.opts.PassOnly && v.Filter != "PASS" && v.Filter != "." {
			stats.Skipped++
			continue
		}

		pos, ok := l.position(v)
		if !ok {
			l.logger.WithFields(logrus.Fields{"line": v.LineNumber, "id": variantID(v)}).Debug("No protein position, skipping record")
			stats.Skipped++
			continue
		}

		id := variantID(v)
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s#%d", id, n)
		}
		variants = append(variants, lollipop.Variant{ID: id, Start: pos})
		stats.Variants++
	}
	return variants, stats, nil
}

// variantID is the record's ID column, or chrom-pos-ref-alt when it is empty.
func variantID(v *vcfgo.Variant) string {
	if id := v.Id(); id != "" && id != "." {
		return id
	}
	return fmt.Sprintf("%s-%d-%s-%s", v.Chromosome, v.Pos, v.Reference, strings.Join(v.Alternate, ","))
}

func (l *VCFLoader) position(v *vcfgo.Variant) (int, bool) {
	if l.opts.GenomicPosition {
		return int(v.Pos), v.Pos > 0
	}
	if value, _ := v.Info().Get(l.opts.PositionKey); value != nil {
		if pos, ok := infoInt(value); ok {
			return pos, true
		}
	}
	return l.annPosition(v)
}

// annPosition reads the protein position from the first matching SnpEff ANN
// entry. The AA.pos/AA.length subfield looks like "245/393".
func (l *VCFLoader) annPosition(v *vcfgo.Variant) (int, bool) {
	value, _ := v.Info().Get("ANN")
	for _, entry := range infoStrings(value) {
		parts := strings.Split(entry, "|")
		if len(parts) < annMinFields {
			continue
		}
		if l.opts.Gene != "" && parts[annGene] != l.opts.Gene {
			continue
		}
		if !containsString(v.Alternate, parts[annAllele]) {
			continue
		}
		aa, _, _ := strings.Cut(parts[annProtein], "/")
		if pos, err := strconv.Atoi(aa); err == nil && pos > 0 {
			return pos, true
		}
	}
	return 0, false
}

// infoInt accepts the typed value of an INFO field declared Integer as well
// as the raw text of an undeclared one.
func infoInt(value interface{}) (int, bool) {
	switch t := value.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case []int:
		if len(t) > 0 {
			return t[0], true
		}
	case string:
		if pos, err := strconv.Atoi(t); err == nil {
			return pos, true
		}
	case []string:
		if len(t) > 0 {
			return infoInt(t[0])
		}
	case []interface{}:
		if len(t) > 0 {
			return infoInt(t[0])
		}
	}
	return 0, false
}

// infoStrings flattens a String INFO value. Multi-valued fields come back as
// a slice when declared and as comma separated text when not.
func infoStrings(value interface{}) []string {
	switch t := value.(type) {
	case string:
		return strings.Split(t, ",")
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
