// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dowser Contributors

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/dowser-dev/dowser/internal/learning"
	"github.com/dowser-dev/dowser/pkg/types"
)

func (s *Server) registerLearningRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "record-feedback",
		Method:      http.MethodPost,
		Path:        "/api/v1/feedback",
		Summary:     "Record query feedback",
		Tags:        []string{"learning"},
	}, s.handleRecordFeedback)

	huma.Register(s.api, huma.Operation{
		OperationID: "learning-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/learning/stats",
		Summary:     "Learning store statistics",
		Tags:        []string{"learning"},
	}, s.handleLearningStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "learning-weights",
		Method:      http.MethodGet,
		Path:        "/api/v1/learning/weights",
		Summary:     "Learned weights for a keyword list",
		Tags:        []string{"learning"},
	}, s.handleLearningWeights)

	huma.Register(s.api, huma.Operation{
		OperationID: "similar-questions",
		Method:      http.MethodPost,
		Path:        "/api/v1/learning/similar",
		Summary:     "Past positive questions similar to a new one",
		Tags:        []string{"learning"},
	}, s.handleSimilarQuestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "table-suggestions",
		Method:      http.MethodPost,
		Path:        "/api/v1/learning/suggestions",
		Summary:     "Tables past feedback favors for a question",
		Tags:        []string{"learning"},
	}, s.handleTableSuggestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "recommended-keywords",
		Method:      http.MethodPost,
		Path:        "/api/v1/learning/keywords",
		Summary:     "High-weight keywords related to a question",
		Tags:        []string{"learning"},
	}, s.handleRecommendedKeywords)

	huma.Register(s.api, huma.Operation{
		OperationID: "pattern-analysis",
		Method:      http.MethodGet,
		Path:        "/api/v1/learning/analysis",
		Summary:     "Feedback pattern analysis over a time window",
		Tags:        []string{"learning"},
	}, s.handlePatternAnalysis)

	huma.Register(s.api, huma.Operation{
		OperationID: "reset-learning",
		Method:      http.MethodDelete,
		Path:        "/api/v1/learning",
		Summary:     "Erase all learned state",
		Tags:        []string{"learning"},
	}, s.handleLearningReset)
}

// --- Request/Response types for huma ---

type feedbackInput struct {
	Body struct {
		Question        string              `json:"question" minLength:"1" doc:"The natural-language question"`
		SQL             string              `json:"sql,omitempty" doc:"The generated SQL"`
		Label           types.FeedbackLabel `json:"label,omitempty" doc:"positive or negative; anything else counts as positive"`
		MatchedTables   []string            `json:"matched_tables,omitempty" doc:"Tables retrieval surfaced for the question"`
		MatchedFields   []string            `json:"matched_fields,omitempty" doc:"Fields retrieval surfaced"`
		MatchedEnums    []string            `json:"matched_enums,omitempty" doc:"Enums retrieval surfaced"`
		RelevanceScores map[string]float64  `json:"relevance_scores,omitempty" doc:"Per-table relevance at answer time"`
		UserID          string              `json:"user_id,omitempty" doc:"Submitting user"`
		SessionID       string              `json:"session_id,omitempty" doc:"Blank mints a new session"`
	}
}
type feedbackOutput struct {
	Body struct {
		FeedbackID string `json:"feedback_id" doc:"Identifier of the stored feedback entry"`
		SessionID  string `json:"session_id" doc:"Session the entry was recorded under"`
	}
}

type learningStatsOutput struct {
	Body learning.Stats
}

type learningWeightsInput struct {
	Keywords string `query:"keywords" doc:"Comma-separated keywords"`
}
type learningWeightsOutput struct {
	Body struct {
		Weights map[string]float64 `json:"weights" doc:"Learned weight per keyword, 1.0 is neutral"`
	}
}

type similarQuestionsInput struct {
	Body struct {
		Question string `json:"question" minLength:"1" doc:"Natural-language question"`
		TopK     int    `json:"top_k,omitempty" minimum:"0" doc:"Result cap; 0 uses the default"`
	}
}
type similarQuestionsOutput struct {
	Body struct {
		Questions []learning.SimilarQuestion `json:"questions" doc:"Past positive questions, most similar first"`
	}
}

type tableSuggestionsInput struct {
	Body struct {
		Question string `json:"question" minLength:"1" doc:"Natural-language question"`
	}
}
type tableSuggestionsOutput struct {
	Body struct {
		Suggestions []learning.TableSuggestion `json:"suggestions" doc:"Tables ranked by accumulated positive evidence"`
	}
}

type recommendedKeywordsInput struct {
	Body struct {
		Question string `json:"question" minLength:"1" doc:"Natural-language question"`
	}
}
type recommendedKeywordsOutput struct {
	Body struct {
		Keywords []string `json:"keywords" doc:"Keywords with learned weight above neutral"`
	}
}

type patternAnalysisInput struct {
	WindowDays int `query:"window_days" minimum:"0" doc:"Analysis window in days; 0 uses the default"`
}
type patternAnalysisOutput struct {
	Body learning.Analysis
}

type learningResetOutput struct {
	Body struct {
		Status string `json:"status" example:"reset" doc:"Reset confirmation"`
	}
}

// --- Handlers ---

func (s *Server) handleRecordFeedback(ctx context.Context, input *feedbackInput) (*feedbackOutput, error) {
	sessionID := input.Body.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	id := s.services.Learning.RecordFeedback(ctx, learning.Feedback{
		Question:        input.Body.Question,
		SQL:             input.Body.SQL,
		Label:           input.Body.Label,
		MatchedTables:   input.Body.MatchedTables,
		MatchedFields:   input.Body.MatchedFields,
		MatchedEnums:    input.Body.MatchedEnums,
		RelevanceScores: input.Body.RelevanceScores,
		UserID:          input.Body.UserID,
		SessionID:       sessionID,
	})

	out := &feedbackOutput{}
	out.Body.FeedbackID = id
	out.Body.SessionID = sessionID
	return out, nil
}

func (s *Server) handleLearningStats(ctx context.Context, _ *struct{}) (*learningStatsOutput, error) {
	return &learningStatsOutput{Body: s.services.Learning.Stats(ctx)}, nil
}

func (s *Server) handleLearningWeights(ctx context.Context, input *learningWeightsInput) (*learningWeightsOutput, error) {
	var keywords []string
	for _, kw := range strings.Split(input.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	out := &learningWeightsOutput{}
	out.Body.Weights = s.services.Learning.EnhancedWeights(ctx, keywords)
	return out, nil
}

func (s *Server) handleSimilarQuestions(ctx context.Context, input *similarQuestionsInput) (*similarQuestionsOutput, error) {
	out := &similarQuestionsOutput{}
	out.Body.Questions = s.services.Learning.SimilarQuestions(ctx, input.Body.Question, input.Body.TopK)
	return out, nil
}

func (s *Server) handleTableSuggestions(ctx context.Context, input *tableSuggestionsInput) (*tableSuggestionsOutput, error) {
	out := &tableSuggestionsOutput{}
	out.Body.Suggestions = s.services.Learning.TableSuggestions(ctx, input.Body.Question)
	return out, nil
}

func (s *Server) handleRecommendedKeywords(ctx context.Context, input *recommendedKeywordsInput) (*recommendedKeywordsOutput, error) {
	out := &recommendedKeywordsOutput{}
	out.Body.Keywords = s.services.Learning.RecommendedKeywords(ctx, input.Body.Question)
	return out, nil
}

func (s *Server) handlePatternAnalysis(ctx context.Context, input *patternAnalysisInput) (*patternAnalysisOutput, error) {
	return &patternAnalysisOutput{Body: s.services.Learning.AnalyzeQueryPatterns(ctx, input.WindowDays)}, nil
}

func (s *Server) handleLearningReset(ctx context.Context, _ *struct{}) (*learningResetOutput, error) {
	if err := s.services.Learning.Reset(ctx); err != nil {
		return nil, humaError("resetting learning store", err)
	}
	out := &learningResetOutput{}
	out.Body.Status = "reset"
	return out, nil
}
