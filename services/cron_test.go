package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/models"
)

type fakeTenantScanner struct {
	tenants []models.Tenant
	levels  map[primitive.ObjectID]string
}

func (f *fakeTenantScanner) EachTenant(_ context.Context, fn func(models.Tenant) error) error {
	for _, t := range f.tenants {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeTenantScanner) SetAlertLevel(_ context.Context, tenantID primitive.ObjectID, level string) error {
	if f.levels == nil {
		f.levels = make(map[primitive.ObjectID]string)
	}
	f.levels[tenantID] = level
	return nil
}

type fakeCrawlJobInserter struct {
	jobs []*models.CrawlJob
}

func (f *fakeCrawlJobInserter) Insert(_ context.Context, job *models.CrawlJob) error {
	job.ID = primitive.NewObjectID()
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeCrawlEnqueuer struct {
	enqueued []string
}

func (f *fakeCrawlEnqueuer) EnqueueCrawlSite(tenantID, siteID, jobID, rootURL string) error {
	f.enqueued = append(f.enqueued, rootURL)
	return nil
}

func alertTestConfig() *config.Config {
	return &config.Config{
		TokenWarnPercent:      80,
		TokenCriticalPercent:  90,
		TokenExhaustedPercent: 100,
		CrawlMaxPages:         50,
	}
}

func usageTenant(used, limit int, alreadySent string) models.Tenant {
	return models.Tenant{
		ID:             primitive.NewObjectID(),
		Name:           "Acme",
		Status:         "active",
		TokenUsed:      used,
		TokenLimit:     limit,
		AlertLevelSent: alreadySent,
	}
}

func TestScanTokenUsageSendsEscalatingAlerts(t *testing.T) {
	cases := []struct {
		name        string
		tenant      models.Tenant
		wantAlert   string
		wantNoAlert bool
	}{
		{name: "under warn threshold", tenant: usageTenant(500, 1000, ""), wantNoAlert: true},
		{name: "warning crossed", tenant: usageTenant(850, 1000, ""), wantAlert: "warning"},
		{name: "critical crossed", tenant: usageTenant(950, 1000, ""), wantAlert: "critical"},
		{name: "exhausted", tenant: usageTenant(1000, 1000, ""), wantAlert: "exhausted"},
		{name: "warning already sent", tenant: usageTenant(850, 1000, "warning"), wantNoAlert: true},
		{name: "critical after warning", tenant: usageTenant(950, 1000, "warning"), wantAlert: "critical"},
		{name: "no downgrade", tenant: usageTenant(850, 1000, "critical"), wantNoAlert: true},
		{name: "suspended skipped", tenant: func() models.Tenant {
			tn := usageTenant(1000, 1000, "")
			tn.Status = "suspended"
			return tn
		}(), wantNoAlert: true},
		{name: "zero limit skipped", tenant: usageTenant(0, 0, ""), wantNoAlert: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scanner := &fakeTenantScanner{tenants: []models.Tenant{tc.tenant}}
			email := &fakeEmailSender{}
			svc := NewCronService(alertTestConfig(), scanner, &fakeCrawlJobInserter{}, &fakeCrawlEnqueuer{}, email)

			require.NoError(t, svc.ScanTokenUsage(context.Background()))

			if tc.wantNoAlert {
				assert.Empty(t, email.alerts)
				return
			}
			require.Len(t, email.alerts, 1)
			assert.Equal(t, tc.wantAlert, email.alerts[0])
			assert.Equal(t, tc.wantAlert, scanner.levels[tc.tenant.ID])
		})
	}
}

func TestScanTokenUsageResetsMarkerWhenUsageDrops(t *testing.T) {
	tenant := usageTenant(100, 1000, "critical")
	scanner := &fakeTenantScanner{tenants: []models.Tenant{tenant}}
	email := &fakeEmailSender{}
	svc := NewCronService(alertTestConfig(), scanner, &fakeCrawlJobInserter{}, &fakeCrawlEnqueuer{}, email)

	require.NoError(t, svc.ScanTokenUsage(context.Background()))

	assert.Empty(t, email.alerts)
	assert.Equal(t, "", scanner.levels[tenant.ID])
}

func TestScheduleRecrawlsQueuesVerifiedSites(t *testing.T) {
	tenant := models.Tenant{
		ID:     primitive.NewObjectID(),
		Name:   "Acme",
		Status: "active",
		Sites: []models.Site{
			{ID: "site-1", Domain: "docs.acme.test", Verified: true},
			{ID: "site-2", Domain: "staging.acme.test", Verified: false},
		},
	}
	scanner := &fakeTenantScanner{tenants: []models.Tenant{tenant}}
	jobs := &fakeCrawlJobInserter{}
	enqueuer := &fakeCrawlEnqueuer{}
	svc := NewCronService(alertTestConfig(), scanner, jobs, enqueuer, &fakeEmailSender{})

	require.NoError(t, svc.ScheduleRecrawls(context.Background()))

	require.Len(t, jobs.jobs, 1, "unverified sites are not recrawled")
	job := jobs.jobs[0]
	assert.Equal(t, "site-1", job.SiteID)
	assert.Equal(t, "https://docs.acme.test", job.URL)
	assert.Equal(t, 50, job.MaxPages)
	assert.Equal(t, []string{"https://docs.acme.test"}, enqueuer.enqueued)
}

func TestAlertRankOrdering(t *testing.T) {
	assert.Less(t, alertRank(""), alertRank("warning"))
	assert.Less(t, alertRank("warning"), alertRank("critical"))
	assert.Less(t, alertRank("critical"), alertRank("exhausted"))
}
