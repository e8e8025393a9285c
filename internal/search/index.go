// Package search mirrors scored students into Elasticsearch so dashboards can
// query them by tier, program and year.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"dropout-alerts/internal/common/logger"
	"dropout-alerts/internal/models"
)

const (
	defaultSize = 20
	maxSize     = 500
)

var (
	ErrMissingIndex   = errors.New("index name is required")
	ErrIndexingFailed = errors.New("indexing failed")
	ErrSearchFailed   = errors.New("search query failed")
)

// Document is the indexed form of a scored student. Missing numeric values
// are omitted rather than sent as NaN.
type Document struct {
	StudentID          string    `json:"id_etudiant"`
	Program            string    `json:"programme"`
	ClassGroup         string    `json:"classe"`
	Year               *int      `json:"annee_etude,omitempty"`
	AverageGrade       *float64  `json:"note_moyenne,omitempty"`
	AbsenceRate        *float64  `json:"taux_absences,omitempty"`
	DropoutLabel       int       `json:"decrochage_pred"`
	DropoutProbability float64   `json:"decrochage_proba"`
	RiskScore          float64   `json:"risque_score"`
	Tier               string    `json:"tier"`
	IndexedAt          time.Time `json:"indexed_at"`
}

// NewDocument converts a scored student.
func NewDocument(s models.ScoredStudent, now time.Time) Document {
	d := Document{
		StudentID:          s.Student.ID,
		Program:            s.Student.Program,
		ClassGroup:         s.Student.ClassGroup,
		AverageGrade:       finite(s.Student.AverageGrade),
		AbsenceRate:        finite(s.Student.AbsenceRate),
		DropoutLabel:       s.Assessment.DropoutLabel,
		DropoutProbability: s.Assessment.DropoutProbability,
		RiskScore:          s.Assessment.RiskScore,
		Tier:               string(s.Assessment.Tier()),
		IndexedAt:          now,
	}
	if !math.IsNaN(s.Student.Year) {
		y := int(s.Student.Year)
		d.Year = &y
	}
	return d
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Query filters indexed students. Zero values mean "any".
type Query struct {
	Tier    models.RiskTier
	Program string
	Year    int
	Size    int
}

// AssessmentIndex writes and queries one index.
type AssessmentIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
	now    func() time.Time
}

func NewAssessmentIndex(client *elasticsearch.Client, index string, log logger.Logger) (*AssessmentIndex, error) {
	if strings.TrimSpace(index) == "" {
		return nil, ErrMissingIndex
	}
	return &AssessmentIndex{
		client: client,
		index:  index,
		logger: logger.OrDefault(log).Named("search"),
		now:    time.Now,
	}, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Index upserts every student, keyed by student id.
func (x *AssessmentIndex) Index(ctx context.Context, students []models.ScoredStudent) error {
	if len(students) == 0 {
		return nil
	}

	var buf bytes.Buffer
	now := x.now().UTC()
	enc := json.NewEncoder(&buf)
	for _, s := range students {
		meta := map[string]interface{}{"index": map[string]interface{}{"_index": x.index, "_id": s.Student.ID}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("%w: %v", ErrIndexingFailed, err)
		}
		if err := enc.Encode(NewDocument(s, now)); err != nil {
			return fmt.Errorf("%w: encode %s: %v", ErrIndexingFailed, s.Student.ID, err)
		}
	}

	req := esapi.BulkRequest{
		Index: x.index,
		Body:  bytes.NewReader(buf.Bytes()),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexingFailed, res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrIndexingFailed, err)
	}
	if br.Errors {
		failed := 0
		var first string
		for _, item := range br.Items {
			for _, op := range item {
				if op.Error != nil {
					failed++
					if first == "" {
						first = op.ID + ": " + op.Error.Reason
					}
				}
			}
		}
		return fmt.Errorf("%w: %d of %d documents rejected (%s)", ErrIndexingFailed, failed, len(students), first)
	}

	x.logger.Info("assessments indexed", map[string]interface{}{
		"index":    x.index,
		"students": len(students),
	})
	return nil
}

func buildSearchBody(q Query) map[string]interface{} {
	filters := []interface{}{}
	if q.Tier != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"tier": string(q.Tier)}})
	}
	if q.Program != "" {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"programme": q.Program}})
	}
	if q.Year != 0 {
		filters = append(filters, map[string]interface{}{"term": map[string]interface{}{"annee_etude": q.Year}})
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
		"sort": []interface{}{
			map[string]interface{}{"risque_score": map[string]interface{}{"order": "desc"}},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching documents, highest risk first, and the total hit count.
func (x *AssessmentIndex) Search(ctx context.Context, q Query) ([]Document, int64, error) {
	size := q.Size
	if size < 1 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}

	body, err := json.Marshal(buildSearchBody(q))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("%w: %s", ErrSearchFailed, res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, 0, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	docs := make([]Document, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, sr.Hits.Total.Value, nil
}
