package service

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/annelo/envstream/internal/config"
	"github.com/annelo/envstream/internal/errs"
)

// NewLogger строит zap-логгер по настройкам logging.
func NewLogger(cfg config.LoggingConfig) (*zap.SugaredLogger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errs.WrapConfig("logging.level", "unknown level", err)
	}
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
