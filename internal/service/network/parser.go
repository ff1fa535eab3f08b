package network

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/kapu/campaign-ops-go/internal/domain"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
)

// MaxRows bounds how many data rows are read from one upload.
const MaxRows = 1000

const (
	colDate           = "date"
	colPlatform       = "platform"
	colImpressions    = "impressions"
	colEngagement     = "engagement"
	colSentimentScore = "sentiment_score"
	colTopTopic       = "top_topic"
)

var headerAliases = map[string]string{
	"fecha":        colDate,
	"plataforma":   colPlatform,
	"red":          colPlatform,
	"impresiones":  colImpressions,
	"sentimiento":  colSentimentScore,
	"sentiment":    colSentimentScore,
	"tema":         colTopTopic,
	"topic":        colTopTopic,
	"tema_top":     colTopTopic,
	"tema_central": colTopTopic,
}

// Rand is the randomness the placeholder policy needs.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Parser reads delimited stats tables. Numeric cells that are missing or
// unparsable are filled with random placeholders and listed in
// NetworkStat.Estimated; a bad cell never rejects the upload.
type Parser struct {
	mu  sync.Mutex
	rng Rand
}

func NewParser(rng Rand) *Parser {
	return &Parser{rng: rng}
}

// Parse reads a header row followed by data rows. Comma and semicolon
// delimiters are both accepted.
func (p *Parser) Parse(r io.Reader) ([]domain.NetworkStat, error) {
	br := bufio.NewReader(r)
	delimiter, err := sniffDelimiter(br)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(br)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperrors.NewValidationError("el archivo está vacío", "file", nil)
	}
	if err != nil {
		return nil, apperrors.NewValidationError("no se pudo leer el encabezado del archivo", "file", err.Error())
	}
	columns := mapHeader(header)
	if _, ok := columns[colPlatform]; !ok {
		return nil, apperrors.NewValidationError("el archivo debe incluir la columna platform", "file", strings.Join(header, ","))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make([]domain.NetworkStat, 0, 32)
	for line := 2; len(stats) < MaxRows; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("fila %d ilegible", line), "file", err.Error())
		}
		if blankRecord(record) {
			continue
		}
		stats = append(stats, p.buildStat(record, columns))
	}

	if len(stats) == 0 {
		return nil, apperrors.NewValidationError("el archivo no tiene filas de datos", "file", nil)
	}
	return stats, nil
}

func (p *Parser) buildStat(record []string, columns map[string]int) domain.NetworkStat {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	stat := domain.NetworkStat{
		Date:     cell(colDate),
		Platform: cell(colPlatform),
		TopTopic: cell(colTopTopic),
	}
	if stat.Platform == "" {
		stat.Platform = "Desconocida"
	}

	if n, ok := parseNumber(cell(colImpressions)); ok && n >= 0 {
		stat.Impressions = int64(math.Round(n))
	} else {
		stat.Impressions = int64(1000 + p.rng.IntN(49000))
		stat.Estimated = append(stat.Estimated, colImpressions)
	}
	if n, ok := parseNumber(strings.TrimSuffix(cell(colEngagement), "%")); ok && n >= 0 {
		stat.Engagement = n
	} else {
		stat.Engagement = round2(0.5 + p.rng.Float64()*9.5)
		stat.Estimated = append(stat.Estimated, colEngagement)
	}
	if n, ok := parseNumber(cell(colSentimentScore)); ok {
		stat.SentimentScore = n
	} else {
		stat.SentimentScore = round2(p.rng.Float64())
		stat.Estimated = append(stat.Estimated, colSentimentScore)
	}
	return stat
}

func sniffDelimiter(br *bufio.Reader) (rune, error) {
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return 0, apperrors.NewValidationError("no se pudo leer el archivo", "file", err.Error())
	}
	headerLine := string(first)
	if idx := strings.IndexByte(headerLine, '\n'); idx >= 0 {
		headerLine = headerLine[:idx]
	}
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';', nil
	}
	return ',', nil
}

func mapHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		name = strings.ReplaceAll(name, " ", "_")
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	return columns
}

// parseNumber accepts "12,500", "12500", "4.5" and "4,5".
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") && len(s)-strings.Index(s, ",") != 4 {
		s = strings.Replace(s, ",", ".", 1)
	}
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
