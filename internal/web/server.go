package web

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/noahxzhu/charge-notify/internal/model"
	"github.com/noahxzhu/charge-notify/internal/platform"
	"github.com/noahxzhu/charge-notify/internal/settings"
)

//go:embed templates/*
var templateFS embed.FS

// Dispatcher sends a notification to the paired receiver.
type Dispatcher interface {
	Send(messageType model.MessageType, batteryLevel *int, onResult func(ok bool, body string))
}

// Server is the local control UI. All mutations go through the settings
// store, so the monitor reacts to them through its own subscription.
type Server struct {
	store      *settings.Store
	dispatcher Dispatcher
	battery    platform.BatteryReader
	router     *http.ServeMux

	mu         sync.Mutex
	lastResult string
}

func NewServer(store *settings.Store, dispatcher Dispatcher, battery platform.BatteryReader) *Server {
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		battery:    battery,
		router:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleIndex)
	s.router.HandleFunc("/settings", s.handleSettings)
	s.router.HandleFunc("/pair", s.handlePair)
	s.router.HandleFunc("/unpair", s.handleUnpair)
	s.router.HandleFunc("/test", s.handleTest)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type indexData struct {
	Settings     settings.Settings
	BatteryLevel int
	Charging     bool
	BatteryError string
	LastResult   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := indexData{Settings: s.store.Snapshot()}

	level, err := s.battery.Level()
	if err != nil {
		data.BatteryError = err.Error()
	} else {
		data.BatteryLevel = level
	}
	if charging, err := s.battery.Charging(); err == nil {
		data.Charging = charging
	}

	s.mu.Lock()
	data.LastResult = s.lastResult
	s.mu.Unlock()

	s.renderTemplate(w, "index.html", data)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if name := strings.TrimSpace(r.FormValue("device_name")); name != "" {
		s.saveSetting(s.store.SetDeviceName(name))
	}

	if raw := r.FormValue("max_level"); raw != "" {
		percent, err := strconv.Atoi(raw)
		if err != nil || percent < 0 || percent > 100 {
			http.Error(w, "Max level must be between 0 and 100", http.StatusBadRequest)
			return
		}
		s.saveSetting(s.store.SetMaxLevelPercent(percent))
	}

	// Unchecked checkboxes are absent from the form.
	s.saveSetting(s.store.SetMonitoringEnabled(r.FormValue("monitoring") == "on"))
	s.saveSetting(s.store.SetMaxLevelNotifyEnabled(r.FormValue("max_level_notify") == "on"))
	s.saveSetting(s.store.SetLowBatteryNotifyEnabled(r.FormValue("low_battery_notify") == "on"))
	s.saveSetting(s.store.SetSkipWhileDisplayOnEnabled(r.FormValue("skip_while_display_on") == "on"))

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handlePair stores the receiver token, enables monitoring, and sends a
// PAIRED test push so the user sees the link working immediately.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimSpace(r.FormValue("token"))
	service := r.FormValue("service")
	if token == "" {
		http.Error(w, "Receiver token is required", http.StatusBadRequest)
		return
	}
	if service != string(model.ServiceFCM) && service != string(model.ServiceTelegram) {
		http.Error(w, "Unknown service", http.StatusBadRequest)
		return
	}

	s.saveSetting(s.store.SetPairedServiceTag(service))
	s.saveSetting(s.store.SetReceiverToken(token))
	s.saveSetting(s.store.SetMonitoringEnabled(true))

	s.dispatcher.Send(model.MessagePaired, nil, s.recordResult)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleUnpair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.saveSetting(s.store.SetMonitoringEnabled(false))
	s.saveSetting(s.store.SetReceiverToken(""))
	s.saveSetting(s.store.SetPairedServiceTag(""))
	s.saveSetting(s.store.SetLastMessageID(""))

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.store.Snapshot().Paired() {
		http.Error(w, "Pair a receiver first", http.StatusBadRequest)
		return
	}

	s.dispatcher.Send(model.MessageTest, nil, s.recordResult)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) recordResult(ok bool, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		if body == "" {
			body = "Could not reach the receiver service."
		}
		s.lastResult = "Failed: " + body
		return
	}
	s.lastResult = body
}

func (s *Server) saveSetting(err error) {
	if err != nil {
		slog.Error("Failed to save setting", "error", err)
	}
}

func (s *Server) renderTemplate(w http.ResponseWriter, tmplName string, data interface{}) {
	tmpl, err := template.ParseFS(templateFS, "templates/"+tmplName)
	if err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), 500)
		return
	}
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, fmt.Sprintf("Execute error: %v", err), 500)
	}
}
