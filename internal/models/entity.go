package models

import "time"

// Entity represents a company (empresa) registered in the platform,
// identified by its Chilean RUT.
type Entity struct {
	ID             string `json:"id"`
	RUT            string `json:"rut"`
	RazonSocial    string `json:"razon_social"`
	NombreFantasia string `json:"nombre_fantasia,omitempty"`
	Giro           string `json:"giro,omitempty"`
	Direccion      string `json:"direccion,omitempty"`
	Comuna         string `json:"comuna,omitempty"`
	Region         string `json:"region,omitempty"`
	Pais           string `json:"pais"`
	Sector         string `json:"sector,omitempty"`  // manufactura, mineria, inmobiliaria, ...
	Tamanio        string `json:"tamanio,omitempty"` // pyme, mediana, grande
	Estado         string `json:"estado"`            // activo, suspendido, cancelado

	// SII integration
	SIIConfigurado       bool       `json:"sii_configurado"`
	SIIRut               string     `json:"sii_rut,omitempty"`
	SIIPasswordEncrypted string     `json:"-"`
	UltimaSyncSII        *time.Time `json:"ultima_sync_sii,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entity estado constants
const (
	EntityEstadoActivo     = "activo"
	EntityEstadoSuspendido = "suspendido"
	EntityEstadoCancelado  = "cancelado"
)
