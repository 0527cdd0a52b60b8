// Package sii integrates with the SII (Servicio de Impuestos Internos)
// electronic tax document API: authentication, received-document listing,
// XML download, and the synchronization pipeline that turns documents into
// evidence plus green ledger entries.
package sii

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
)

// DocumentoResumen is one entry of the received-documents listing.
type DocumentoResumen struct {
	Tipo        int     `json:"tipo"`
	Folio       int     `json:"folio"`
	RUTEmisor   string  `json:"rut_emisor"`
	RazonSocial string  `json:"razon_social"`
	FechaEmis   string  `json:"fecha_emision"`
	MontoNeto   float64 `json:"monto_neto"`
	MontoTotal  float64 `json:"monto_total"`
}

// Client talks to the SII API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new SII API client
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Authenticate exchanges the company's SII credentials for a session token.
// A failure here is fatal to any sync run.
func (c *Client) Authenticate(ctx context.Context, rut, password string) (string, error) {
	payload, _ := json.Marshal(map[string]string{
		"rut":      rut,
		"password": password,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/boleta.electronica/auth", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &result); err != nil {
		return "", fmt.Errorf("SII authentication for RUT %s: %w", rut, err)
	}

	c.logger.Info("SII authentication successful", zap.String("rut", rut))
	return result.Token, nil
}

// ListReceivedDocuments fetches the received (purchase) documents of one DTE
// type in a date range.
func (c *Client) ListReceivedDocuments(ctx context.Context, token string, tipoDTE int, desde, hasta time.Time) ([]DocumentoResumen, error) {
	url := fmt.Sprintf("%s/boleta.electronica/v1/documentos/recibidos?tipo=%d&fechaDesde=%s&fechaHasta=%s",
		c.baseURL, tipoDTE, desde.Format("2006-01-02"), hasta.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var result struct {
		Documentos []DocumentoResumen `json:"documentos"`
	}
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("SII list DTE %d: %w", tipoDTE, err)
	}

	c.logger.Debug("SII documents listed",
		zap.Int("tipo_dte", tipoDTE),
		zap.Int("count", len(result.Documentos)))
	return result.Documentos, nil
}

// DownloadXML fetches the full XML of one document.
func (c *Client) DownloadXML(ctx context.Context, token string, tipoDTE, folio int) ([]byte, error) {
	url := fmt.Sprintf("%s/boleta.electronica/v1/documentos/%d/xml?tipo=%d", c.baseURL, folio, tipoDTE)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SII download DTE %d-%d: %v: %w", tipoDTE, folio, err, apperr.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SII download DTE %d-%d: status %d: %w", tipoDTE, folio, resp.StatusCode, apperr.ErrUpstream)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("SII download DTE %d-%d: read body: %v: %w", tipoDTE, folio, err, apperr.ErrUpstream)
	}
	return content, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%v: %w", err, apperr.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %w", resp.StatusCode, apperr.ErrUpstream)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %v: %w", err, apperr.ErrUpstream)
	}
	return nil
}
