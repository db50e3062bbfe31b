package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coursecal/internal/app"
	"coursecal/internal/config"
	"coursecal/internal/course"
	"coursecal/internal/dateutil"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/model"
	"coursecal/internal/status"
	"coursecal/internal/viewer"
)

// maxBodyBytes bounds uploaded course data and timetables.
const maxBodyBytes = 8 << 20

// Server exposes the course store, navigation state and status tracker as a
// JSON API for the presentation layer.
type Server struct {
	cfg     *config.Config
	app     *app.App
	nav     *viewer.Navigator
	tracker *status.Tracker
	fetcher *ics.Fetcher
	swipe   viewer.SwipeThresholds
	now     func() time.Time

	mux *http.ServeMux
}

// Deps are the collaborators a Server serves from.
type Deps struct {
	App       *app.App
	Navigator *viewer.Navigator
	Tracker   *status.Tracker
	Fetcher   *ics.Fetcher
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		app:     deps.App,
		nav:     deps.Navigator,
		tracker: deps.Tracker,
		fetcher: deps.Fetcher,
		swipe: viewer.SwipeThresholds{
			Week: cfg.Swipe.WeekMinDistance,
			Day:  cfg.Swipe.DayMinDistance,
		},
		now: deps.Now,
		mux: http.NewServeMux(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Blank credentials disable auth rather than lock everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="coursecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/courses", s.handleCourses)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	s.mux.HandleFunc("GET /api/view", s.handleView)
	s.mux.HandleFunc("POST /api/view", s.handleNavigate)

	s.mux.HandleFunc("GET /api/data", s.handleGetData)
	s.mux.HandleFunc("PUT /api/data", s.handlePutData)
	s.mux.HandleFunc("POST /api/validate", s.handleValidate)
	s.mux.HandleFunc("GET /api/example", s.handleExample)

	s.mux.HandleFunc("GET /api/export.ics", s.handleExportICS)
	s.mux.HandleFunc("POST /api/import/ics", s.handleImportICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// courseDTO is the JSON view of a course for the agenda.
type courseDTO struct {
	LessonName    string       `json:"lessonName"`
	TeacherName   string       `json:"teacherName"`
	ClassRoomName string       `json:"classRoomName"`
	Description   string       `json:"description,omitempty"`
	StartTime     int64        `json:"startTime"`
	EndTime       int64        `json:"endTime"`
	Start         string       `json:"start"`
	End           string       `json:"end"`
	Status        status.State `json:"status,omitempty"`
}

func newCourseDTO(c model.Course, loc *time.Location, st status.State) courseDTO {
	return courseDTO{
		LessonName:    c.DisplayLessonName(),
		TeacherName:   c.DisplayTeacherName(),
		ClassRoomName: c.DisplayClassRoomName(),
		Description:   c.Description,
		StartTime:     c.StartTime.UnixMilli(),
		EndTime:       c.EndTime.UnixMilli(),
		Start:         dateutil.FormatTimeOfDay(c.StartTime.In(loc)),
		End:           dateutil.FormatTimeOfDay(c.EndTime.In(loc)),
		Status:        st,
	}
}

// agendaResponse is the JSON response shape for /api/courses.
type agendaResponse struct {
	Date       string           `json:"date"`
	Weekday    string           `json:"weekday"`
	Today      bool             `json:"today"`
	Courses    []courseDTO      `json:"courses"`
	Indicator  status.Indicator `json:"indicator"`
	HasAnyData bool             `json:"has_any_data"`
}

// handleCourses returns one day's agenda.
//
// GET /api/courses?date=YYYY-MM-DD (default: today)
func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	loc := s.app.Store.Location()
	now := s.now().In(loc)

	day, ok := s.dayParam(w, r, now)
	if !ok {
		return
	}

	courses := s.app.Store.QueryByDate(day)
	resp := agendaResponse{
		Date:       day.Format(time.DateOnly),
		Weekday:    day.Weekday().String(),
		Today:      dateutil.IsSameCalendarDay(now, day),
		Courses:    make([]courseDTO, 0, len(courses)),
		HasAnyData: s.app.Store.Len() > 0,
	}
	for _, c := range courses {
		resp.Courses = append(resp.Courses, newCourseDTO(c, loc, status.Classify(c, now)))
	}
	if resp.Today {
		resp.Indicator = status.ComputeIndicator(courses, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

type weekDayDTO struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Count   int    `json:"count"`
	Today   bool   `json:"today"`
}

type weekResponse struct {
	WeekStart string       `json:"week_start"`
	Days      []weekDayDTO `json:"days"`
}

// handleWeek returns the seven days of the week containing date.
//
// GET /api/week?date=YYYY-MM-DD (default: today)
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	loc := s.app.Store.Location()
	now := s.now().In(loc)

	day, ok := s.dayParam(w, r, now)
	if !ok {
		return
	}

	start := dateutil.StartOfWeekOn(day, s.cfg.FirstWeekday())
	writeJSON(w, http.StatusOK, s.week(dateutil.WeekDays(start), now))
}

func (s *Server) week(days []time.Time, now time.Time) weekResponse {
	resp := weekResponse{WeekStart: days[0].Format(time.DateOnly)}
	for _, d := range days {
		resp.Days = append(resp.Days, weekDayDTO{
			Date:    d.Format(time.DateOnly),
			Weekday: d.Weekday().String(),
			Count:   len(s.app.Store.QueryByDate(d)),
			Today:   dateutil.IsSameCalendarDay(now, d),
		})
	}
	return resp
}

type statusResponse struct {
	Day       string           `json:"day"`
	Courses   []courseDTO      `json:"courses"`
	Current   int              `json:"current"`
	Upcoming  int              `json:"upcoming"`
	Indicator status.Indicator `json:"indicator"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// handleStatus returns the tracker's last snapshot without recomputing it.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	loc := s.app.Store.Location()
	snap := s.tracker.Snapshot()
	if snap.UpdatedAt.IsZero() {
		snap = s.tracker.Refresh()
	}

	resp := statusResponse{
		Day:       snap.Day.Format(time.DateOnly),
		Courses:   make([]courseDTO, 0, len(snap.Courses)),
		Current:   snap.Current,
		Upcoming:  snap.Upcoming,
		Indicator: snap.Indicator,
		UpdatedAt: snap.UpdatedAt,
	}
	for _, cs := range snap.Courses {
		resp.Courses = append(resp.Courses, newCourseDTO(cs.Course, loc, cs.State))
	}
	writeJSON(w, http.StatusOK, resp)
}

type viewResponse struct {
	Selected  string       `json:"selected"`
	Direction string       `json:"direction,omitempty"`
	Week      weekResponse `json:"week"`
}

func (s *Server) viewResponse(v viewer.View, dir viewer.Direction) viewResponse {
	now := s.now().In(s.app.Store.Location())
	resp := viewResponse{
		Selected: v.Selected.Format(time.DateOnly),
		Week:     s.week(v.Days(), now),
	}
	if dir != viewer.None {
		resp.Direction = dir.String()
	}
	return resp
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.viewResponse(s.nav.View(), viewer.None))
}

// navigateRequest is one presentation event.
//
//	{"action":"week","dir":1}
//	{"action":"day","dir":-1}
//	{"action":"today"}
//	{"action":"pick","date":"2024-09-07"}
//	{"action":"swipe-week","dx":-60,"dy":4}
//	{"action":"swipe-day","dx":90,"dy":0}
type navigateRequest struct {
	Action string  `json:"action"`
	Dir    int     `json:"dir"`
	Date   string  `json:"date"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid navigation request")
		return
	}

	var (
		v   viewer.View
		dir viewer.Direction
	)
	switch req.Action {
	case "week":
		v = s.nav.NavigateWeek(sign(req.Dir))
	case "day":
		v = s.nav.NavigateDay(sign(req.Dir))
	case "today":
		v = s.nav.Today(s.now())
	case "pick":
		d, err := dateutil.ParseDay(req.Date, s.app.Store.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date; want YYYY-MM-DD")
			return
		}
		v = s.nav.Pick(d)
	case "swipe-week":
		dir, v = s.nav.ApplyWeekSwipe(req.DX, req.DY, s.swipe)
	case "swipe-day":
		dir, v = s.nav.ApplyDaySwipe(req.DX, req.DY, s.swipe)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	writeJSON(w, http.StatusOK, s.viewResponse(v, dir))
}

type dataResponse struct {
	Raw string `json:"raw"`
}

type loadResponse struct {
	Loaded   int        `json:"loaded"`
	Rejected int        `json:"rejected"`
	Errors   []string   `json:"errors,omitempty"`
	Notice   app.Notice `json:"notice"`
}

func newLoadResponse(res course.LoadResult) loadResponse {
	resp := loadResponse{
		Loaded:   res.Loaded,
		Rejected: res.Rejected,
		Notice:   app.LoadNotice(res, nil),
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return resp
}

func (s *Server) handleGetData(w http.ResponseWriter, _ *http.Request) {
	raw, err := s.app.RawData()
	if err != nil {
		appLog.Error("api data: read failed", err)
		writeNotice(w, http.StatusInternalServerError, app.ErrorNotice(err))
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Raw: raw})
}

// handlePutData commits the request body as the new course data.
func (s *Server) handlePutData(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	res, err := s.app.Commit(string(body))
	if err != nil {
		writeNotice(w, errorStatus(err), app.ErrorNotice(err))
		return
	}
	s.tracker.Refresh()
	writeJSON(w, http.StatusOK, newLoadResponse(res))
}

type validateResponse struct {
	Report  course.ValidationReport `json:"report"`
	Errors  []string                `json:"errors,omitempty"`
	Notices []app.Notice            `json:"notices"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	report, err := s.app.Validate(string(body))
	if err != nil {
		writeNotice(w, errorStatus(err), app.ErrorNotice(err))
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Report:  report,
		Errors:  report.ErrorMessages(),
		Notices: app.ValidationNotices(report),
	})
}

func (s *Server) handleExample(w http.ResponseWriter, _ *http.Request) {
	raw, err := course.ExamplePayload(s.now().In(s.app.Store.Location()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build example")
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Raw: raw})
}

func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	body := ics.Export(s.app.Store.Courses(), s.now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="courses.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

type importResponse struct {
	loadResponse
	SkippedAllDay int      `json:"skipped_all_day"`
	Truncated     []string `json:"truncated_uids,omitempty"`
}

// handleImportICS replaces the course data with an ICS timetable, given
// either as the request body or as ?url=.
//
// POST /api/import/ics?days=N&url=...
func (s *Server) handleImportICS(w http.ResponseWriter, r *http.Request) {
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.ImportDays)
	if days <= 0 {
		days = s.cfg.ImportDays
	}
	win := app.ImportWindow(s.now().In(s.app.Store.Location()), days)

	var (
		res course.LoadResult
		imp ics.ImportResult
		err error
	)
	if u := r.URL.Query().Get("url"); u != "" {
		if s.fetcher == nil {
			writeError(w, http.StatusServiceUnavailable, "timetable fetching is disabled")
			return
		}
		res, imp, err = s.app.ImportICSURL(r.Context(), s.fetcher, u, win)
	} else {
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		res, imp, err = s.app.ImportICS(body, win)
	}
	if err != nil {
		appLog.Error("api import: failed", err)
		writeError(w, http.StatusBadRequest, "failed to import timetable: "+err.Error())
		return
	}

	s.tracker.Refresh()
	writeJSON(w, http.StatusOK, importResponse{
		loadResponse:  newLoadResponse(res),
		SkippedAllDay: imp.SkippedAllDay,
		Truncated:     imp.Truncated,
	})
}

// dayParam reads ?date=YYYY-MM-DD in the store's location, defaulting to now.
func (s *Server) dayParam(w http.ResponseWriter, r *http.Request, now time.Time) (time.Time, bool) {
	v := r.URL.Query().Get("date")
	if v == "" {
		return dateutil.DayStart(now), true
	}
	d, err := dateutil.ParseDay(v, now.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date; want YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}
	return body, true
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrEmptyInput),
		errors.Is(err, course.ErrMalformedJSON),
		errors.Is(err, course.ErrUnsupportedFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func writeNotice(w http.ResponseWriter, status int, n app.Notice) {
	type errResp struct {
		Error  string     `json:"error"`
		Notice app.Notice `json:"notice"`
	}
	writeJSON(w, status, errResp{Error: n.Message, Notice: n})
}
