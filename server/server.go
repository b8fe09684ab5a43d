package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/hannes/docshield/config"
	"github.com/hannes/docshield/obscure"
	"github.com/hannes/docshield/pii"
	"github.com/hannes/docshield/pipeline"
)

// Server exposes the detection pipeline and obscuring engine over HTTP.
type Server struct {
	config   *config.Config
	orch     *pipeline.Orchestrator
	obscurer *obscure.Engine
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, orch *pipeline.Orchestrator, obscurer *obscure.Engine) *Server {
	return &Server{config: cfg, orch: orch, obscurer: obscurer}
}

// Handler builds the route table. Split from Start so tests can drive it
// with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthCheck)
	mux.HandleFunc("/api/detect", s.handleDetect)
	mux.HandleFunc("/api/obscure", s.handleObscure)
	mux.HandleFunc("/api/deobscure", s.handleDeobscure)
	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)
	mux.HandleFunc("/api/tokens/clear", s.handleTokensClear)
	mux.HandleFunc("/api/tokens/count", s.handleTokensCount)
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting detection service on port %s", s.config.ServerPort)

	server := &http.Server{
		Addr:         s.config.ServerPort,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return server.ListenAndServe()
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"healthy","service":"DocShield"}`)); err != nil {
		log.Printf("[Server] Failed to write health check response: %v", err)
	}
}

type detectRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // base64-encoded document image
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var result *pii.DetectionResult
	var err error
	switch {
	case req.Image != "":
		image, decErr := base64.StdEncoding.DecodeString(req.Image)
		if decErr != nil {
			http.Error(w, "Invalid base64 image", http.StatusBadRequest)
			return
		}
		result, err = s.orch.ProcessImage(r.Context(), image)
	case req.Text != "":
		result, err = s.orch.ProcessText(r.Context(), req.Text)
	default:
		http.Error(w, "Either text or image is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		// The only top-level pipeline error is invalid input.
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, result)
}

type obscureRequest struct {
	Detections []pii.Detection `json:"detections"`
	Technique  string          `json:"technique"`
}

func (s *Server) handleObscure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req obscureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Detections) == 0 {
		http.Error(w, "No detections provided", http.StatusBadRequest)
		return
	}

	results, err := s.obscurer.ObscureBatch(req.Detections, obscure.Technique(req.Technique))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{"results": results})
}

type deobscureRequest struct {
	Value     string `json:"value"`
	Technique string `json:"technique"`
}

func (s *Server) handleDeobscure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deobscureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var original string
	var err error
	switch obscure.Technique(req.Technique) {
	case obscure.TechniqueTokenization:
		original, err = s.obscurer.Detokenize(req.Value)
	case obscure.TechniqueEncryption:
		original, err = s.obscurer.Decrypt(req.Value)
	default:
		http.Error(w, "Technique is not reversible", http.StatusBadRequest)
		return
	}
	if errors.Is(err, obscure.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"originalText": original})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.orch.Cache().Clear()
	writeJSON(w, map[string]string{"status": "cleared"})
}

func (s *Server) handleTokensClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.obscurer.ClearTokens(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "cleared"})
}

func (s *Server) handleTokensCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	count, err := s.obscurer.TokenCount()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"count": count})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tokenCount, err := s.obscurer.TokenCount()
	if err != nil {
		tokenCount = -1
	}
	writeJSON(w, map[string]interface{}{
		"layers": map[string]bool{
			"pattern":     s.config.Layers.Pattern,
			"specialized": s.config.Layers.Specialized,
			"vision":      s.config.Layers.Vision,
			"llm":         s.config.Layers.LLM,
		},
		"ensembleEnabled": s.config.EnsembleEnabled,
		"cacheEntries":    s.orch.Cache().Size(),
		"tokenCount":      tokenCount,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}
