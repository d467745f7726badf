// Package logging construye el logger zap del proceso a partir de la configuración.
package logging

import (
	"go.uber.org/zap"
)

// New crea un logger de producción (JSON) o de desarrollo (consola) con el nivel indicado.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}
