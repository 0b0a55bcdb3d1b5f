package proxy

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Proxy forwards admitted requests to one backend target. The interesting
// logic in this gateway is admission control; forwarding is deliberately a
// thin wrapper over httputil.ReverseProxy.
type Proxy struct {
	target  *url.URL
	reverse *httputil.ReverseProxy
}

func New(targetURL string) (*Proxy, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, err
	}

	reverse := httputil.NewSingleHostReverseProxy(target)
	reverse.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("Proxy error for %s %s: %v", r.Method, r.URL.Path, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"Backend unavailable"}`))
	}

	return &Proxy{target: target, reverse: reverse}, nil
}

// Handle forwards the request to the backend.
func (p *Proxy) Handle(c *gin.Context) {
	req := c.Request

	req.Header.Set("X-Forwarded-Host", req.Host)
	if clientIP := c.ClientIP(); clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	p.reverse.ServeHTTP(c.Writer, req)
}
