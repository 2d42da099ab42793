package tasks

import (
	"context"
	"errors"

	"github.com/soulbridge/soulbridge/internal/scheduler"
)

const ConnectivityTaskID = "gateway-connectivity"

// ErrGatewayUnreachable marks a failed connectivity probe.
var ErrGatewayUnreachable = errors.New("gateway session unreachable")

// ConnectivityChecker verifies the gateway session is reachable.
type ConnectivityChecker interface {
	CheckConnectivity(ctx context.Context) bool
}

// RegisterConnectivityTask registers the periodic gateway health probe.
func RegisterConnectivityTask(sched *scheduler.Scheduler, checker ConnectivityChecker) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ConnectivityTaskID,
		Name:        "Gateway Connectivity",
		Description: "Verifies the download gateway session is reachable",
		Cron:        "*/5 * * * *",
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			if !checker.CheckConnectivity(ctx) {
				return ErrGatewayUnreachable
			}
			return nil
		},
	})
}
