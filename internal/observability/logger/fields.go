package logger

import (
	"time"

	"go.uber.org/zap"
)

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Route(v string) zap.Field     { return zap.String("route", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func Component(v string) zap.Field   { return zap.String("component", v) }
func Stage(v string) zap.Field       { return zap.String("stage", v) }
func IssuerID(v string) zap.Field    { return zap.String("issuer_id", v) }
func RecipientID(v string) zap.Field { return zap.String("recipient_id", v) }
func CID(v string) zap.Field         { return zap.String("cid", v) }
func TxHash(v string) zap.Field      { return zap.String("tx_hash", v) }
func Subject(v string) zap.Field     { return zap.String("subject", v) }

func Err(err error) zap.Field { return zap.Error(err) }
