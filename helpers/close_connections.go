package helpers

import (
	"github.com/sirupsen/logrus"

	"github.com/ajvoice/aj-server/pkg/config"
)

// HandleCloseConnections releases every external connection the server
// holds. Safe to call even when startup failed half way.
func HandleCloseConnections() {
	appCnf := config.GetConfig()
	if appCnf == nil {
		return
	}

	if appCnf.DB != nil {
		if db, err := appCnf.DB.DB(); err == nil {
			_ = db.Close()
		}
	}

	if appCnf.RDS != nil {
		_ = appCnf.RDS.Close()
	}

	if appCnf.NatsConn != nil && !appCnf.NatsConn.IsClosed() {
		appCnf.NatsConn.Close()
	}

	logrus.Exit(0)
}
