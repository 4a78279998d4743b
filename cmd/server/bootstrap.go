package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	contractmodels "claimdesk/internal/contract/models"
	contractstore "claimdesk/internal/contract/store"
	platformredis "claimdesk/internal/platform/redis"
	httptransport "claimdesk/internal/transport/http"
	id "claimdesk/pkg/domain"
)

// healthFunc adapts a closure to the router's HealthChecker.
type healthFunc func() error

func (f healthFunc) Health() error { return f() }

func healthChecks(db *sql.DB, redisClient *platformredis.Client) map[string]httptransport.HealthChecker {
	checks := make(map[string]httptransport.HealthChecker)
	if db != nil {
		checks["postgres"] = healthFunc(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		})
	}
	if redisClient != nil {
		checks["redis"] = healthFunc(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}
	return checks
}

// seedDemoContracts loads two reference contracts so the in-memory mode is
// usable out of the box. Fixed ids keep local curl sessions reproducible.
func seedDemoContracts(store *contractstore.InMemory, log *slog.Logger) {
	contractA, _ := id.ParseContractID("11111111-1111-1111-1111-111111111111")
	contractB, _ := id.ParseContractID("22222222-2222-2222-2222-222222222222")

	store.Seed(
		&contractmodels.Contract{
			ID:                 contractA,
			Reference:          "CT-2026-DEMO0001",
			InsuredName:        "Awa Diallo",
			PartnerInstitution: "Microfinance Partner One",
			LoanAmount:         1_500_000,
			BenefitOption:      contractmodels.BenefitOptionA,
			CapitalGuarantee:   true,
			LumpSumGuarantee:   true,
			EffectiveDate:      time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		&contractmodels.Contract{
			ID:                 contractB,
			Reference:          "CT-2026-DEMO0002",
			InsuredName:        "Moussa Traore",
			PartnerInstitution: "Microfinance Partner Two",
			LoanAmount:         800_000,
			BenefitOption:      contractmodels.BenefitOptionB,
			CapitalGuarantee:   true,
			LumpSumGuarantee:   false,
			EffectiveDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	)
	log.Info("seeded demo contracts",
		"contract_a", contractA.String(),
		"contract_b", contractB.String(),
	)
}
