package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

func main() {
	// Get port from command line or use default
	port := "8081"
	if len(os.Args) > 1 {
		port = os.Args[1]
	}

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","port":%s}`, port)
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[Port %s] %s %s colo=%s country=%s", port, r.Method, r.RequestURI,
			r.Header.Get("X-Edge-Colo"), r.Header.Get("X-Edge-Country"))

		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"origin":"test-origin","port":%s,"method":"%s"}`, port, r.Method)

		case "/page":
			// Cacheable HTML with an explicit freshness window
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Cache-Control", "max-age=60, stale-while-revalidate=30")
			fmt.Fprintf(w, "<html><body>served by port %s at %s</body></html>", port, time.Now().Format(time.RFC3339))

		case "/private":
			// Never cacheable
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Set-Cookie", "session=test")
			fmt.Fprintf(w, `{"user":"private data","port":%s}`, port)

		case "/delay":
			time.Sleep(100 * time.Millisecond)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"status":"ok","delay_ms":100}`)

		case "/error":
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"simulated error"}`)

		default:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"path":"%s","port":%s}`, r.URL.Path, port)
		}
	})

	addr := fmt.Sprintf(":%s", port)
	log.Printf("Test origin listening on port %s", port)
	log.Fatal(http.ListenAndServe(addr, nil))
}
