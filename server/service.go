package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/tkrehbiel/activitysift/server/activity"
	"github.com/tkrehbiel/activitysift/server/analysis"
	"github.com/tkrehbiel/activitysift/server/as2"
	"github.com/tkrehbiel/activitysift/server/discovery"
	"github.com/tkrehbiel/activitysift/server/resolve"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

const RequestIDHeader = "X-Request-Id"

var ErrBadRequest = errors.New("bad request")

type ActivityService struct {
	Config   Config
	Server   http.Server
	router   *mux.Router
	resolver resolve.Resolver
	release  func()
}

// pair is the body of requests that compare two versions of an object
type pair struct {
	Before *activity.Object `json:"before"`
	After  *activity.Object `json:"after" validate:"required"`
}

type rsvpRequest struct {
	Event *activity.Object  `json:"event" validate:"required"`
	RSVPs []activity.Object `json:"rsvps"`
}

// discoverQuery holds the query string overrides for /discover
type discoverQuery struct {
	Domains         []string `query:"domain" validate:"dive,required"`
	RedirectSources *bool    `query:"redirect_sources"`
	ReservedHosts   *bool    `query:"reserved_hosts"`
	MaxFetches      *int     `query:"max_fetches" validate:"omitempty,min=0,max=100"`
}

func (s *ActivityService) addHandlers() {
	s.router.HandleFunc("/", homeHandler).Methods("GET")

	s.handle("/discover", s.discoverHandler)
	s.handle("/visibility", visibilityHandler)
	s.handle("/changed", changedHandler)
	s.handle("/replies/merge", mergeRepliesHandler)
	s.handle("/rsvps/add", addRSVPsHandler)
	s.handle("/rsvps/extract", extractRSVPsHandler)
	s.handle("/as2", toAS2Handler)
	s.handle("/as1", toAS1Handler)
}

func (s *ActivityService) handle(path string, h http.HandlerFunc) {
	rl := RequestLogger{Handler: h, MaxBodyBytes: s.Config.Server.MaxBodyBytes}
	s.router.HandleFunc(path, rl.ServeHTTP).Methods("POST")
}

// Handler is the router, for tests and for embedding in other servers
func (s *ActivityService) Handler() http.Handler {
	return s.router
}

func (s *ActivityService) discoverHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Increment("discover_requests", 1)
	opts, err := s.discoveryOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	act, err := readObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := discovery.Discover(r.Context(), act, opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, result)
}

// discoveryOptions applies query string overrides to the configured defaults
func (s *ActivityService) discoveryOptions(r *http.Request) (discovery.Options, error) {
	opts := s.Config.DiscoveryOptions()
	opts.Resolver = s.resolver

	q, err := parseDiscoverQuery(r.URL.Query())
	if err != nil {
		return opts, err
	}
	if err := validateStruct(&q, ErrBadRequest); err != nil {
		return opts, err
	}
	if q.Domains != nil {
		opts.Domains = q.Domains
	}
	if q.RedirectSources != nil {
		opts.IncludeRedirectSources = *q.RedirectSources
	}
	if q.ReservedHosts != nil {
		opts.IncludeReservedHosts = *q.ReservedHosts
	}
	if q.MaxFetches != nil {
		opts.MaxRedirectFetches = *q.MaxFetches
	}
	return opts, nil
}

func parseDiscoverQuery(v url.Values) (discoverQuery, error) {
	var q discoverQuery
	if domains, ok := v["domain"]; ok {
		q.Domains = domains
	}
	var err error
	if q.RedirectSources, err = queryBool(v, "redirect_sources"); err != nil {
		return q, err
	}
	if q.ReservedHosts, err = queryBool(v, "reserved_hosts"); err != nil {
		return q, err
	}
	if s := v.Get("max_fetches"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, fmt.Errorf("%w: max_fetches: %v", ErrBadRequest, err)
		}
		q.MaxFetches = &n
	}
	return q, nil
}

func queryBool(v url.Values, key string) (*bool, error) {
	s := v.Get(key)
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadRequest, key, err)
	}
	return &b, nil
}

func visibilityHandler(w http.ResponseWriter, r *http.Request) {
	obj, err := readObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]analysis.Visibility{"visibility": analysis.IsPublic(obj)})
}

func changedHandler(w http.ResponseWriter, r *http.Request) {
	var p pair
	if err := readJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]bool{"changed": analysis.Changed(p.Before, p.After, true)})
}

func mergeRepliesHandler(w http.ResponseWriter, r *http.Request) {
	var p pair
	if err := readJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateStruct(&p, ErrBadRequest); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	analysis.AppendInReplyTo(p.Before, p.After)
	writeJSON(w, p.After)
}

func addRSVPsHandler(w http.ResponseWriter, r *http.Request) {
	var req rsvpRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := validateStruct(&req, ErrBadRequest); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	analysis.AddRSVPsToEvent(req.Event, req.RSVPs)
	writeJSON(w, req.Event)
}

func extractRSVPsHandler(w http.ResponseWriter, r *http.Request) {
	event, err := readObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, analysis.GetRSVPsFromEvent(event))
}

func toAS2Handler(w http.ResponseWriter, r *http.Request) {
	obj, err := readObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeContent(w, activity.ContentType, as2.FromAS1(obj))
}

func toAS1Handler(w http.ResponseWriter, r *http.Request) {
	var m map[string]any
	if err := readJSON(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	obj, err := as2.ToAS1(m)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, obj)
}

func readObject(r *http.Request) (*activity.Object, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return activity.Decode(b)
}

func readJSON(r *http.Request, v any) error {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	writeContent(w, "application/json", v)
}

func writeContent(w http.ResponseWriter, contentType string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		telemetry.Error(err, "marshaling response")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func writeError(w http.ResponseWriter, code int, err error) {
	telemetry.Increment("bad_requests", 1)
	telemetry.Trace("responding %d: %v", code, err)
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

// Close anything related to the service before exiting
func (s *ActivityService) Close() {
	if s.release != nil {
		s.release()
	}
	telemetry.LogCounters()
}

func (s *ActivityService) ListenAndServe() error {
	if s.Config.Server.useTLS() {
		telemetry.Log("tls listener starting on port %d", s.Config.Server.Port)
		return s.Server.ListenAndServeTLS(s.Config.Server.Certificate, s.Config.Server.PrivateKey)
	} else {
		telemetry.Log("http listener starting on port %d", s.Config.Server.Port)
		return s.Server.ListenAndServe()
	}
}

// Start listens in the background until Stop is called
func (s *ActivityService) Start() {
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			telemetry.Error(err, "listening on port %d", s.Config.Server.Port)
		}
	}()
}

// Stop waits for open requests to finish, then closes the service
func (s *ActivityService) Stop(ctx context.Context) error {
	defer s.Close()
	return s.Server.Shutdown(ctx)
}

// NewService creates an http service for activity analysis requests
func NewService(cfg Config) (*ActivityService, error) {
	svc := &ActivityService{
		Config: cfg,
		router: mux.NewRouter(),
	}

	resolver, release, err := cfg.NewResolver()
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}
	svc.resolver = resolver
	svc.release = release

	// configure web handlers
	svc.addHandlers()

	svc.Server = http.Server{
		Handler:      svc.router,
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.HostName, cfg.Server.Port),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
	}
	return svc, nil
}

// RequestLogger tags a request with an id, limits its body and logs it
type RequestLogger struct {
	Handler      http.HandlerFunc
	MaxBodyBytes int64
}

func (rl RequestLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	log := telemetry.Logger().With().Str("request_id", id).Logger()
	log.Info().Str("method", r.Method).Str("url", r.URL.String()).Msg("request")

	if rl.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rl.MaxBodyBytes)
	}
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		telemetry.Error(err, "error reading body")
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(buf) > 0 {
		log.Debug().Msg(string(buf))
	}
	r.Body = io.NopCloser(bytes.NewBuffer(buf))
	rl.Handler(w, r)
}

func homeHandler(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "homeHandler")
	telemetry.Increment("home_requests", 1)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<html><title>activitysift</title>
<body>
<p>This is <a href="https://github.com/tkrehbiel/activitysift/">activitysift</a>,
a set of ActivityStreams analysis tools. POST an activity to /discover to find
its original posts.</p>
</body>
</html>`)
}
