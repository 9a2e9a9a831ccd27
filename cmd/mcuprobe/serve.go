package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/speters/mcuprobe/mcu"
	"github.com/speters/mcuprobe/sink"
)

// server exposes the device over http, one request at a time
type server struct {
	mu         sync.Mutex
	t          mcu.Transport
	dialect    mcu.Dialect
	opts       []mcu.Option
	defaults   []string
	fileSuites []mcu.Suite
	last       *mcu.Report
}

func (s *server) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/version", versionInfo).Methods("GET")
	router.HandleFunc("/commands", s.getCommands).Methods("GET")
	router.HandleFunc("/suites", s.getSuites).Methods("GET")
	router.HandleFunc("/send/{name}", s.send).Methods("POST")
	router.HandleFunc("/run/{suite}", s.run).Methods("POST")
	router.HandleFunc("/report", s.getReport).Methods("GET")
	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	if err := e.Encode(v); err != nil {
		log.Errorf("Encoding response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(status)
	w.Write([]byte(err.Error()))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	v := struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: buildVersion, BuildDate: buildDate}
	writeJSON(w, http.StatusOK, v)
}

type commandJSON struct {
	Name   string    `json:"name"`
	Opcode string    `json:"opcode"`
	Params mcu.Bytes `json:"params"`
}

func (s *server) getCommands(w http.ResponseWriter, r *http.Request) {
	var cmds []commandJSON
	for _, c := range mcu.Commands() {
		cmds = append(cmds, commandJSON{Name: c.Name, Opcode: fmt.Sprintf("0x%02X", c.Opcode), Params: c.Params})
	}
	writeJSON(w, http.StatusOK, cmds)
}

func (s *server) getSuites(w http.ResponseWriter, r *http.Request) {
	type suiteJSON struct {
		Key   string `json:"key"`
		Name  string `json:"name"`
		Cases int    `json:"cases"`
	}
	var suites []suiteJSON
	for _, n := range mcu.BuiltinSuiteNames() {
		st, _ := mcu.BuiltinSuite(n)
		suites = append(suites, suiteJSON{Key: n, Name: st.Name, Cases: len(st.Cases)})
	}
	for _, st := range s.fileSuites {
		suites = append(suites, suiteJSON{Key: st.Name, Name: st.Name, Cases: len(st.Cases)})
	}
	writeJSON(w, http.StatusOK, suites)
}

// send expects an optional body {"params": [..]} replacing the default parameters
func (s *server) send(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	c, err := mcu.Lookup(params["name"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	req := c.Request()
	var body struct {
		Params []int `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Params != nil {
		p := make([]byte, len(body.Params))
		for i, v := range body.Params {
			if v < 0 || v > 0xFF {
				writeError(w, http.StatusBadRequest, fmt.Errorf("parameter %d out of byte range: %v", i, v))
				return
			}
			p[i] = byte(v)
		}
		req = c.With(p...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := mcu.NewDriver(s.t, s.opts...)
	resp, ok, err := d.Exchange(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusGatewayTimeout, fmt.Errorf("no response to %v", c.Name))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Command  string    `json:"command"`
		Response mcu.Bytes `json:"response"`
		Parsed   string    `json:"parsed"`
	}{c.Name, resp, mcu.Describe(mcu.Frame{Dialect: s.dialect, Payload: resp})})
}

func (s *server) run(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	suites, err := resolveSuites([]string{params["suite"]}, s.defaults, s.fileSuites)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	mem := sink.NewMemory()
	opts := append(append([]mcu.Option(nil), s.opts...), mcu.WithSink(mem))
	d := mcu.NewDriver(s.t, opts...)
	report, err := d.RunSuites(suites...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.last = &report
	writeJSON(w, http.StatusOK, report)
}

func (s *server) getReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no run yet"))
		return
	}
	writeJSON(w, http.StatusOK, s.last)
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the command table and test runs over http",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Listen = addr
			}
			// accept :[portnum] as well as [portnum]
			if i, err := strconv.Atoi(cfg.Listen); err == nil {
				cfg.Listen = fmt.Sprintf(":%d", i)
			}

			var fileSuites []mcu.Suite
			if cfg.SuiteFile != "" {
				if fileSuites, err = mcu.LoadSuiteFile(cfg.SuiteFile); err != nil {
					return err
				}
			}
			dev, err := openDevice(cfg)
			if err != nil {
				return err
			}
			defer dev.Close()

			s := &server{
				t:          dev,
				dialect:    cfg.DialectValue(),
				opts:       driverOptions(cfg),
				defaults:   cfg.Suites,
				fileSuites: fileSuites,
			}
			log.Infof("Serving %v on %v", cfg.Link, cfg.Listen)
			h := &http.Server{Addr: cfg.Listen, Handler: s.router()}
			return h.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen at [bindtohost][:]port")
	return cmd
}
