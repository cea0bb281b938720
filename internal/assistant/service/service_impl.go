package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/oceandata/internal/assistant/domain"
	"github.com/smallbiznis/oceandata/internal/clock"
	"github.com/smallbiznis/oceandata/internal/config"
	datasetdomain "github.com/smallbiznis/oceandata/internal/dataset/domain"
	"github.com/smallbiznis/oceandata/internal/filestore"
	"github.com/smallbiznis/oceandata/internal/observability/metrics"
	"github.com/smallbiznis/oceandata/pkg/db/pagination"
)

const (
	maxDatasetMatches  = 5
	maxKeywords        = 5
	maxHistoryLimit    = 100
	fallbackConfidence = 0.5
	matchBoost         = 0.2
	maxConfidence      = 0.95
	unknownName        = "Unknown"
	uploadedMessage    = "File uploaded and analyzed successfully"
)

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Datasets  datasetdomain.Repository
	Completer domain.Completer
	Images    *filestore.Store `name:"images"`
	Clock     clock.Clock
	Config    config.Config
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	datasets  datasetdomain.Repository
	completer domain.Completer
	images    *filestore.Store
	clock     clock.Clock
	maxImage  int64
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("assistant.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		datasets:  p.Datasets,
		completer: p.Completer,
		images:    p.Images,
		clock:     p.Clock,
		maxImage:  p.Config.MaxImageBytes,
		metrics:   p.Metrics,
	}
}

func (s *Service) Chat(ctx context.Context, message string) (domain.ChatResponse, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return domain.ChatResponse{}, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > domain.MaxMessageLength {
		return domain.ChatResponse{}, domain.ErrMessageTooLong
	}

	matches := s.datasetMatches(ctx, keywords(text))

	reply, err := s.completer.Complete(ctx, domain.Prompt{
		System: systemPrompt,
		Text:   withDatasetContext(text, matches),
	})
	if err != nil {
		s.metrics.RecordAssistantRequest(ctx, "chat", outcome(err))
		return domain.ChatResponse{}, err
	}

	entry := &domain.ChatMessage{
		ID:        s.genID.Generate(),
		Message:   text,
		Response:  reply,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertChat(ctx, s.db, entry); err != nil {
		s.log.Warn("store chat message", zap.Error(err))
	}

	s.metrics.RecordAssistantRequest(ctx, "chat", "ok")
	return domain.ChatResponse{Reply: reply, DatasetMatches: matches}, nil
}

func (s *Service) IdentifyImage(ctx context.Context, req domain.IdentifyRequest) (domain.Analysis, error) {
	if len(req.Image) == 0 {
		return domain.Analysis{}, domain.ErrImageRequired
	}
	mimeType := strings.ToLower(strings.TrimSpace(req.MimeType))
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.Analysis{}, domain.ErrInvalidImage
	}

	reply, err := s.completer.Complete(ctx, domain.Prompt{
		Text:  identifyPrompt,
		Image: &domain.InlineImage{MimeType: mimeType, Data: req.Image},
	})
	if err != nil {
		s.metrics.RecordAssistantRequest(ctx, "identify", outcome(err))
		return domain.Analysis{}, err
	}

	analysis := parseAnalysis(reply)
	matched := s.enrich(ctx, &analysis)

	item := identification(analysis, matched)
	item.ID = s.genID.Generate()
	item.CreatedAt = s.clock.Now()
	if name := strings.TrimSpace(req.Filename); name != "" {
		item.Filename = &name
	}
	if err := s.repo.InsertIdentification(ctx, s.db, &item); err != nil {
		s.log.Warn("store identification", zap.Error(err))
	}

	s.metrics.RecordAssistantRequest(ctx, "identify", "ok")
	return analysis, nil
}

func (s *Service) UploadImage(ctx context.Context, req domain.UploadImageRequest) (domain.UploadImageResponse, error) {
	if len(req.Body) == 0 {
		return domain.UploadImageResponse{}, domain.ErrImageRequired
	}
	if s.maxImage > 0 && int64(len(req.Body)) > s.maxImage {
		return domain.UploadImageResponse{}, domain.ErrImageTooLarge
	}

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(req.Body)
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return domain.UploadImageResponse{}, domain.ErrInvalidImage
	}

	stored, _, err := s.images.Save(ctx, req.Filename, bytes.NewReader(req.Body), s.maxImage)
	if err != nil {
		if errors.Is(err, filestore.ErrTooLarge) {
			return domain.UploadImageResponse{}, domain.ErrImageTooLarge
		}
		return domain.UploadImageResponse{}, err
	}

	analysis, err := s.IdentifyImage(ctx, domain.IdentifyRequest{
		Image:    req.Body,
		MimeType: mimeType,
		Filename: stored,
	})
	if err != nil {
		if rmErr := s.images.Remove(stored); rmErr != nil {
			s.log.Warn("remove unanalyzed image", zap.String("filename", stored), zap.Error(rmErr))
		}
		return domain.UploadImageResponse{}, err
	}

	return domain.UploadImageResponse{
		Message:  uploadedMessage,
		Filename: stored,
		Analysis: analysis,
		FileURL:  "/uploads/" + stored,
	}, nil
}

func (s *Service) ChatHistory(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	items, err := s.repo.ListChats(ctx, s.db, clampLimit(limit, domain.DefaultChatHistoryLimit))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ChatMessage{}
	}
	return items, nil
}

func (s *Service) RecentIdentifications(ctx context.Context, limit int) ([]domain.SpeciesIdentification, error) {
	items, err := s.repo.ListIdentifications(ctx, s.db, clampLimit(limit, domain.DefaultIdentificationList))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.SpeciesIdentification{}
	}
	return items, nil
}

// datasetMatches collects up to maxDatasetMatches distinct records matching
// any keyword. Search failures only reduce the context.
func (s *Service) datasetMatches(ctx context.Context, words []string) []datasetdomain.SearchHit {
	matches := make([]datasetdomain.SearchHit, 0, maxDatasetMatches)
	seen := make(map[snowflake.ID]struct{})

	for _, word := range words {
		if len(matches) >= maxDatasetMatches {
			break
		}
		hits, _, err := s.datasets.SearchRecords(ctx, s.db, datasetdomain.SearchFilter{Query: word}, pagination.Page{Limit: maxDatasetMatches})
		if err != nil {
			s.log.Debug("dataset keyword search failed", zap.String("keyword", word), zap.Error(err))
			continue
		}
		for _, hit := range hits {
			if _, ok := seen[hit.ID]; ok {
				continue
			}
			seen[hit.ID] = struct{}{}
			matches = append(matches, hit)
			if len(matches) >= maxDatasetMatches {
				break
			}
		}
	}
	return matches
}

// enrich fills gaps from the first stored record matching the identified
// names and raises the confidence.
func (s *Service) enrich(ctx context.Context, analysis *domain.Analysis) *datasetdomain.SearchHit {
	for _, name := range []string{analysis.ScientificName, analysis.CommonName} {
		name = strings.TrimSpace(name)
		if utf8.RuneCountInString(name) < datasetdomain.MinQueryLength || strings.EqualFold(name, unknownName) {
			continue
		}

		hits, _, err := s.datasets.SearchRecords(ctx, s.db, datasetdomain.SearchFilter{Query: name}, pagination.Page{Limit: 1})
		if err != nil {
			s.log.Debug("identification lookup failed", zap.Error(err))
			continue
		}
		if len(hits) == 0 {
			continue
		}

		hit := hits[0]
		fill(&analysis.Habitat, hit.Habitat)
		fill(&analysis.DepthRange, hit.DepthRange)
		fill(&analysis.Distribution, hit.Distribution)
		fill(&analysis.ConservationStatus, hit.ConservationStatus)
		fill(&analysis.Diet, hit.Diet)
		fill(&analysis.Size, hit.Size)
		fill(&analysis.Weight, hit.Weight)
		fill(&analysis.Threats, hit.Threats)
		analysis.DatasetMatch = true
		analysis.Confidence = min(analysis.Confidence+matchBoost, maxConfidence)
		return &hit
	}
	return nil
}

func parseAnalysis(reply string) domain.Analysis {
	if match := jsonObjectPattern.FindString(reply); match != "" {
		var analysis domain.Analysis
		if err := json.Unmarshal([]byte(match), &analysis); err == nil {
			if strings.TrimSpace(analysis.CommonName) == "" {
				analysis.CommonName = unknownName
			}
			if strings.TrimSpace(analysis.ScientificName) == "" {
				analysis.ScientificName = unknownName
			}
			if analysis.Confidence <= 0 || analysis.Confidence > 1 {
				analysis.Confidence = fallbackConfidence
			}
			analysis.DatasetMatch = false
			return analysis
		}
	}
	return domain.Analysis{
		CommonName:     unknownName,
		ScientificName: unknownName,
		Description:    reply,
		Confidence:     fallbackConfidence,
	}
}

func identification(a domain.Analysis, matched *datasetdomain.SearchHit) domain.SpeciesIdentification {
	item := domain.SpeciesIdentification{
		CommonName:         a.CommonName,
		ScientificName:     a.ScientificName,
		Description:        a.Description,
		ConfidenceScore:    a.Confidence,
		Habitat:            optional(a.Habitat),
		DepthRange:         optional(a.DepthRange),
		Distribution:       optional(a.Distribution),
		ConservationStatus: optional(a.ConservationStatus),
		Diet:               optional(a.Diet),
		Size:               optional(a.Size),
		Weight:             optional(a.Weight),
		Threats:            optional(a.Threats),
	}
	if item.Description == "" {
		item.Description = "No description available"
	}
	if matched != nil {
		id := matched.ID
		item.MatchedRecordID = &id
	}
	return item
}

func keywords(message string) []string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})

	out := make([]string, 0, maxKeywords)
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "-")
		if utf8.RuneCountInString(field) < 3 {
			continue
		}
		if _, skip := stopWords[field]; skip {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

func withDatasetContext(message string, matches []datasetdomain.SearchHit) string {
	if len(matches) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\n")
	b.WriteString(datasetContextHeader)
	for _, hit := range matches {
		b.WriteString("\n- ")
		b.WriteString(describe(hit))
	}
	return b.String()
}

func describe(hit datasetdomain.SearchHit) string {
	parts := make([]string, 0, 6)
	name := value(hit.SpeciesName)
	if name == "" {
		name = unknownName
	}
	if scientific := value(hit.ScientificName); scientific != "" {
		name = fmt.Sprintf("%s (%s)", name, scientific)
	}
	parts = append(parts, name)
	for _, item := range []struct {
		label string
		value *string
	}{
		{"habitat", hit.Habitat},
		{"distribution", hit.Distribution},
		{"status", hit.ConservationStatus},
		{"diet", hit.Diet},
	} {
		if v := value(item.value); v != "" {
			parts = append(parts, item.label+": "+v)
		}
	}
	parts = append(parts, fmt.Sprintf("dataset: %s [%s]", hit.DatasetName, hit.DatasetSource))
	return strings.Join(parts, "; ")
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		return "disabled"
	case errors.Is(err, domain.ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func fill(dst *string, src *string) {
	if strings.TrimSpace(*dst) == "" && src != nil {
		*dst = *src
	}
}

func value(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
