package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"github.com/itchyny/gojq"
	"go.uber.org/zap"

	"github.com/delta10/wms-probe/internal/annotate"
	"github.com/delta10/wms-probe/internal/catalog"
	"github.com/delta10/wms-probe/internal/utils"
	"github.com/delta10/wms-probe/internal/wms"
)

type ClaimsWithGroups struct {
	jwt.RegisteredClaims
	Groups []string `json:"groups"`
}

// Prober is the part of wms.Probe the HTTP API needs.
type Prober interface {
	IsWMS(ctx context.Context, rawURL string) wms.Verdict
	ExtractBaseURLs(ctx context.Context, rawURL string) wms.BaseURLSet
}

type ProbeResponse struct {
	URL      string      `json:"url"`
	Verdict  wms.Verdict `json:"verdict"`
	BaseURLs []string    `json:"base_urls"`
}

type Options struct {
	// ResponseRewrite is an optional jq expression applied to probe responses.
	ResponseRewrite string
	// Keyfunc enables bearer token authentication when set.
	Keyfunc jwt.Keyfunc
	// AllowedGroups, when not empty, requires the token to carry one of them.
	AllowedGroups []string
	// WriteTimeout bounds a whole request, annotation included. Defaults to
	// DefaultWriteTimeout.
	WriteTimeout time.Duration
}

const DefaultWriteTimeout = 2 * time.Minute

type Server struct {
	prober    Prober
	annotator *annotate.Annotator
	rewrite   *gojq.Code
	keyfunc   jwt.Keyfunc
	groups    []string
	timeout   time.Duration
	logger    *zap.Logger
}

func New(prober Prober, annotator *annotate.Annotator, options Options, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = DefaultWriteTimeout
	}

	s := &Server{
		prober:    prober,
		annotator: annotator,
		keyfunc:   options.Keyfunc,
		groups:    options.AllowedGroups,
		timeout:   options.WriteTimeout,
		logger:    logger.With(zap.String("component", "server")),
	}

	if options.ResponseRewrite != "" {
		query, err := gojq.Parse(options.ResponseRewrite)
		if err != nil {
			return nil, err
		}

		s.rewrite, err = gojq.Compile(query)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/probe", s.handleProbe).Methods(http.MethodGet)
	if s.annotator != nil {
		api.HandleFunc("/resources/{id}/annotate", s.handleAnnotate).Methods(http.MethodPost)
	}

	return router
}

func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:           addr,
		Handler:        s.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   s.timeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.keyfunc == nil {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims := &ClaimsWithGroups{}
		token, err := jwt.ParseWithClaims(tokenString, claims, s.keyfunc)
		if err != nil || !token.Valid {
			s.logger.Info("rejected token", zap.String("ip", utils.ReadUserIP(r)), zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if !s.inAllowedGroup(claims.Groups) {
			writeError(w, http.StatusForbidden, "not a member of an allowed group")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) inAllowedGroup(groups []string) bool {
	if len(s.groups) == 0 {
		return true
	}

	for _, group := range groups {
		if utils.StringInSlice(group, s.groups) {
			return true
		}
	}

	return false
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if utils.QueryParamsContainMultipleKeys(r.URL.Query()) {
		writeError(w, http.StatusBadRequest, "query parameters contain multiple keys")
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	response := ProbeResponse{
		URL:      target,
		Verdict:  s.prober.IsWMS(r.Context(), target),
		BaseURLs: []string{},
	}
	if response.Verdict == wms.Confirmed {
		response.BaseURLs = s.prober.ExtractBaseURLs(r.Context(), target).Sorted()
	}

	if s.rewrite == nil {
		writeJSON(w, http.StatusOK, response)
		return
	}

	s.writeRewritten(w, response)
}

func (s *Server) writeRewritten(w http.ResponseWriter, response ProbeResponse) {
	marshalled, err := json.Marshal(response)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not marshal json")
		return
	}

	var result map[string]interface{}
	if err := json.Unmarshal(marshalled, &result); err != nil {
		writeError(w, http.StatusInternalServerError, "could not unmarshal json")
		return
	}

	var outputs []interface{}
	iter := s.rewrite.Run(result)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}

		if err, ok := v.(error); ok {
			s.logger.Warn("response rewrite failed", zap.Error(err))
			continue
		}

		outputs = append(outputs, v)
	}

	switch len(outputs) {
	case 0:
		writeError(w, http.StatusInternalServerError, "response rewrite produced no output")
	case 1:
		writeJSON(w, http.StatusOK, outputs[0])
	default:
		writeJSON(w, http.StatusOK, outputs)
	}
}

func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := s.annotator.AnnotateByID(r.Context(), id)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found: "+id)
	case errors.Is(err, annotate.ErrAnnotationPanic):
		writeError(w, http.StatusInternalServerError, "annotation failed")
	case err != nil:
		s.logger.Error("annotate request failed", zap.String("resource_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not annotate resource")
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	response, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not marshal json")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(response)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	jsonResp, _ := json.Marshal(map[string]string{"message": message})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(jsonResp)
}
