package biditest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Readerable marks URLs for which the emulated reader mode finds an
// article. Other pages are only parsed in reader mode when forced.
const Readerable = "/article"

// translations is the dictionary of the emulated translations engine.
var translations = map[string]string{
	"Hello":         "Hola",
	"Good morning":  "Buenos días",
	"Thank you":     "Gracias",
	"How are you?":  "¿Cómo estás?",
	"The red house": "La casa roja",
}

// Emulate registers an in-memory rendition of every runner command, keeping
// engines and translation sessions by handle like Firefox does. Unknown
// handles are rejected.
func (s *Server) Emulate() {
	e := &emulator{
		s:        s,
		engines:  make(map[string]engine),
		sessions: make(map[string]languagePair),
	}
	s.Handle("get_page_text", e.pageText)
	s.Handle("get_reader_mode_content", e.readerModeContent)
	s.Handle("get_page_info", e.pageInfo)
	s.Handle("get_selection_text", e.selectionText)
	s.Handle("get_headless_page_text", e.headlessPageText)
	s.Handle("create_ml_engine", e.createEngine)
	s.Handle("run_ml_engine", e.runEngine)
	s.Handle("destroy_ml_engine", e.destroyEngine)
	s.Handle("create_translations_session", e.createSession)
	s.Handle("run_translations_session", e.runSession)
	s.Handle("destroy_translations_session", e.destroySession)
}

type engine struct {
	TaskName string `json:"taskName"`
	ModelID  string `json:"modelId"`
}

type languagePair struct {
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

type emulator struct {
	s *Server

	mu       sync.Mutex
	engines  map[string]engine
	sessions map[string]languagePair
}

func (e *emulator) currentURL() string {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	return e.s.url
}

// handle returns a new opaque handle, like the uuids of Firefox's engine
// and translation actors.
func handle(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// arg decodes args[i] into v, leaving v untouched when the argument is
// missing.
func arg(args []json.RawMessage, i int, v interface{}) error {
	if i >= len(args) {
		return nil
	}
	if err := json.Unmarshal(args[i], v); err != nil {
		return fmt.Errorf("argument %d: %v", i, err)
	}
	return nil
}

func pageText(url string) map[string]interface{} {
	return map[string]interface{}{
		"text":     "Text of " + url,
		"metadata": map[string]interface{}{"url": url, "wordCount": 3},
	}
}

func (e *emulator) pageText(args []json.RawMessage) (interface{}, error) {
	var options map[string]interface{}
	if err := arg(args, 0, &options); err != nil {
		return nil, err
	}
	return pageText(e.currentURL()), nil
}

func (e *emulator) readerModeContent(args []json.RawMessage) (interface{}, error) {
	var force bool
	if err := arg(args, 0, &force); err != nil {
		return nil, err
	}
	url := e.currentURL()
	if !force && !strings.Contains(url, Readerable) {
		return nil, nil
	}
	return "Article of " + url, nil
}

func (e *emulator) pageInfo(args []json.RawMessage) (interface{}, error) {
	return map[string]interface{}{"url": e.currentURL(), "pageCount": 1, "currentPage": 1}, nil
}

func (e *emulator) selectionText(args []json.RawMessage) (interface{}, error) {
	return "", nil
}

func (e *emulator) headlessPageText(args []json.RawMessage) (interface{}, error) {
	var url string
	if err := arg(args, 0, &url); err != nil {
		return nil, err
	}
	if url == "" {
		return nil, errors.New("a url is required")
	}
	return pageText(url), nil
}

func (e *emulator) createEngine(args []json.RawMessage) (interface{}, error) {
	var opts engine
	if err := arg(args, 0, &opts); err != nil {
		return nil, err
	}
	if opts.TaskName == "" {
		return nil, errors.New("taskName is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id := handle("engine")
	e.engines[id] = opts
	return map[string]string{"engineId": id}, nil
}

func (e *emulator) runEngine(args []json.RawMessage) (interface{}, error) {
	var id string
	var req struct {
		Args    []string               `json:"args"`
		Options map[string]interface{} `json:"options"`
	}
	if err := arg(args, 0, &id); err != nil {
		return nil, err
	}
	if err := arg(args, 1, &req); err != nil {
		return nil, err
	}
	e.mu.Lock()
	eng, ok := e.engines[id]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown engine %q", id)
	}
	var entries []map[string]string
	for _, a := range req.Args {
		switch eng.TaskName {
		case "summarization":
			entries = append(entries, map[string]string{"summary_text": "Summary: " + firstWords(a, 5)})
		default:
			entries = append(entries, map[string]string{"generated_text": a})
		}
	}
	return map[string]interface{}{"entries": entries}, nil
}

func (e *emulator) destroyEngine(args []json.RawMessage) (interface{}, error) {
	var id string
	if err := arg(args, 0, &id); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.engines[id]; !ok {
		return nil, fmt.Errorf("unknown engine %q", id)
	}
	delete(e.engines, id)
	return map[string]interface{}{"engineId": id, "destroyed": true}, nil
}

func (e *emulator) createSession(args []json.RawMessage) (interface{}, error) {
	var req struct {
		LanguagePair languagePair `json:"languagePair"`
	}
	if err := arg(args, 0, &req); err != nil {
		return nil, err
	}
	if req.LanguagePair.SourceLanguage == "" || req.LanguagePair.TargetLanguage == "" {
		return nil, errors.New("languagePair needs a sourceLanguage and a targetLanguage")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id := handle("translations")
	e.sessions[id] = req.LanguagePair
	return map[string]string{"sessionId": id}, nil
}

func (e *emulator) runSession(args []json.RawMessage) (interface{}, error) {
	var id string
	var req struct {
		Text   string `json:"text"`
		IsHTML bool   `json:"isHTML"`
	}
	if err := arg(args, 0, &id); err != nil {
		return nil, err
	}
	if err := arg(args, 1, &req); err != nil {
		return nil, err
	}
	e.mu.Lock()
	pair, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown translations session %q", id)
	}
	target, ok := translations[req.Text]
	if !ok || pair.TargetLanguage != "es" {
		target = fmt.Sprintf("[%s] %s", pair.TargetLanguage, req.Text)
	}
	return map[string]string{"targetText": target}, nil
}

func (e *emulator) destroySession(args []json.RawMessage) (interface{}, error) {
	var id string
	if err := arg(args, 0, &id); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[id]; !ok {
		return nil, fmt.Errorf("unknown translations session %q", id)
	}
	delete(e.sessions, id)
	return map[string]interface{}{"sessionId": id, "destroyed": true}, nil
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
