package models_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/models"
	"github.com/graintrack/mill_backend/utils"
	"github.com/graintrack/mill_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: creating an inward entry must post a CREDIT to the stock ledger
// exactly once, via the outbox, even though the posting happens after commit.
func TestInwardEntry_PostsStockCreditViaOutbox(t *testing.T) {
	ctx := setupIntegration(t)

	mill, err := models.CreateMill(ctx, &models.NewMill{
		Name:     "Sri Lakshmi Rice Mill",
		Timezone: "Asia/Kolkata",
	})
	if err != nil {
		t.Fatalf("CreateMill: %v", err)
	}
	ctx = utils.SetMillIdInContext(ctx, mill.ID)

	dispCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger()).Run(dispCtx)

	entry, err := models.CreateInwardEntry(ctx, mill.ID, &models.NewInwardEntry{
		Date:          models.DateString(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)),
		VehicleNumber: "AP16TX1234",
		PaddyType:     "Sona Masoori",
		Bags:          100,
		GrossWeight:   decimal.NewFromInt(8200),
		TareWeight:    decimal.NewFromInt(700),
		NetWeight:     decimal.NewFromInt(7500),
	})
	if err != nil {
		t.Fatalf("CreateInwardEntry: %v", err)
	}

	waitForPosted(t, ctx, mill.ID, models.StockReferenceTypeInward, entry.ID)

	// 7500 kg = 75 quintals
	balance, err := models.GetStockBalance(ctx, mill.ID, models.CommodityPaddy, "", nil)
	if err != nil {
		t.Fatalf("GetStockBalance: %v", err)
	}
	if balance.Cmp(decimal.NewFromInt(75)) != 0 {
		t.Fatalf("expected paddy balance 75 qtl, got %s", balance.String())
	}

	// editing the document must NOT re-post
	entry, err = models.UpdateInwardEntry(ctx, mill.ID, entry.ID, &models.NewInwardEntry{
		Date:          models.DateString(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)),
		VehicleNumber: "AP16TX1234",
		PaddyType:     "Sona Masoori",
		Bags:          100,
		GrossWeight:   decimal.NewFromInt(8200),
		TareWeight:    decimal.NewFromInt(700),
		NetWeight:     decimal.NewFromInt(9000),
	})
	if err != nil {
		t.Fatalf("UpdateInwardEntry: %v", err)
	}
	time.Sleep(2 * time.Second)
	balance, err = models.GetStockBalance(ctx, mill.ID, models.CommodityPaddy, "", nil)
	if err != nil {
		t.Fatalf("GetStockBalance after update: %v", err)
	}
	if balance.Cmp(decimal.NewFromInt(75)) != 0 {
		t.Fatalf("edit must not re-post; expected 75 qtl, got %s", balance.String())
	}

	// deleting the document keeps the ledger entry (audit trail)
	if _, err := models.DeleteInwardEntry(ctx, mill.ID, entry.ID); err != nil {
		t.Fatalf("DeleteInwardEntry: %v", err)
	}
	balance, err = models.GetStockBalance(ctx, mill.ID, models.CommodityPaddy, "", nil)
	if err != nil {
		t.Fatalf("GetStockBalance after delete: %v", err)
	}
	if balance.Cmp(decimal.NewFromInt(75)) != 0 {
		t.Fatalf("delete must not reverse the ledger; expected 75 qtl, got %s", balance.String())
	}
}

// Regression: bulk delete is tenant scoped and idempotent.
func TestBulkDeleteSaleDeals_TenantScopedIdempotent(t *testing.T) {
	ctx := setupIntegration(t)

	millA, err := models.CreateMill(ctx, &models.NewMill{Name: "Mill A"})
	if err != nil {
		t.Fatalf("CreateMill A: %v", err)
	}
	millB, err := models.CreateMill(ctx, &models.NewMill{Name: "Mill B"})
	if err != nil {
		t.Fatalf("CreateMill B: %v", err)
	}

	ctxA := utils.SetMillIdInContext(ctx, millA.ID)
	ctxB := utils.SetMillIdInContext(ctx, millB.ID)

	newDeal := func(remarks string) *models.NewSaleDeal {
		return &models.NewSaleDeal{
			Date:        models.DateString(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)),
			Commodity:   models.CommodityRice,
			Variety:     "BPT",
			Bags:        40,
			QtyQuintals: decimal.NewFromInt(20),
			Rate:        decimal.NewFromInt(5200),
			Remarks:     remarks,
		}
	}

	a1, err := models.CreateSaleDeal(ctxA, millA.ID, newDeal("a1"))
	if err != nil {
		t.Fatalf("CreateSaleDeal a1: %v", err)
	}
	a2, err := models.CreateSaleDeal(ctxA, millA.ID, newDeal("a2"))
	if err != nil {
		t.Fatalf("CreateSaleDeal a2: %v", err)
	}
	b1, err := models.CreateSaleDeal(ctxB, millB.ID, newDeal("b1"))
	if err != nil {
		t.Fatalf("CreateSaleDeal b1: %v", err)
	}

	// ids from another mill and unknown ids are silently skipped
	count, err := models.BulkDeleteSaleDeals(ctxA, millA.ID, []int{a1.ID, a2.ID, b1.ID, 999999})
	if err != nil {
		t.Fatalf("BulkDeleteSaleDeals: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected deletedCount 2, got %d", count)
	}

	// replay deletes nothing
	count, err = models.BulkDeleteSaleDeals(ctxA, millA.ID, []int{a1.ID, a2.ID})
	if err != nil {
		t.Fatalf("BulkDeleteSaleDeals replay: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected deletedCount 0 on replay, got %d", count)
	}

	// the other tenant's deal survives
	if _, err := models.GetSaleDeal(ctxB, millB.ID, b1.ID); err != nil {
		t.Fatalf("mill B deal must survive mill A's bulk delete: %v", err)
	}
}

// Regression: requeueing a DEAD outbox row must reset its retry budget so the
// dispatcher actually posts it instead of re-marking it DEAD on the next claim.
func TestReplayStockPosting_RevivesDeadRow(t *testing.T) {
	ctx := setupIntegration(t)

	mill, err := models.CreateMill(ctx, &models.NewMill{Name: "Replay Mill"})
	if err != nil {
		t.Fatalf("CreateMill: %v", err)
	}
	ctx = utils.SetMillIdInContext(ctx, mill.ID)

	payload, err := json.Marshal(models.StockPostingRequest{
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Commodity: models.CommodityRice,
		Variety:   "BPT",
		Direction: models.TransactionDirectionCredit,
		Qty:       decimal.NewFromInt(12),
		Bags:      30,
		CreatedBy: 1,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	lastError := "max posting attempts exceeded (20)"
	record := models.StockPostingRecord{
		MillId:    mill.ID,
		RefModel:  models.StockReferenceTypeInward,
		RefId:     424242,
		Payload:   payload,
		Status:    models.StockPostingStatusDead,
		Attempts:  20,
		LastError: &lastError,
	}
	if err := config.GetDB().WithContext(ctx).Create(&record).Error; err != nil {
		t.Fatalf("create dead outbox row: %v", err)
	}

	dispCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger()).Run(dispCtx)

	// DEAD rows are not claimable; the dispatcher must leave it alone.
	time.Sleep(2 * time.Second)
	rec, err := models.GetStockPostingStatus(ctx, mill.ID, models.StockReferenceTypeInward, 424242)
	if err != nil {
		t.Fatalf("GetStockPostingStatus: %v", err)
	}
	if rec.Status != models.StockPostingStatusDead {
		t.Fatalf("expected row to stay DEAD before replay, got %s", rec.Status)
	}

	// replaying an unknown row is a not-found, not a silent no-op
	if err := models.ReplayStockPosting(ctx, mill.ID, 987654); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record-not-found for unknown row, got %v", err)
	}

	if err := models.ReplayStockPosting(ctx, mill.ID, record.ID); err != nil {
		t.Fatalf("ReplayStockPosting: %v", err)
	}
	waitForPosted(t, ctx, mill.ID, models.StockReferenceTypeInward, 424242)

	balance, err := models.GetStockBalance(ctx, mill.ID, models.CommodityRice, "BPT", nil)
	if err != nil {
		t.Fatalf("GetStockBalance: %v", err)
	}
	if balance.Cmp(decimal.NewFromInt(12)) != 0 {
		t.Fatalf("expected rice balance 12 qtl after replay, got %s", balance.String())
	}
}

// Regression: an empty match set yields the fixed all-zero summary shape and a
// zero balance, never an error or nulls.
func TestSummaries_EmptyTenantReturnsZeroShape(t *testing.T) {
	ctx := setupIntegration(t)

	mill, err := models.CreateMill(ctx, &models.NewMill{Name: "Empty Mill"})
	if err != nil {
		t.Fatalf("CreateMill: %v", err)
	}
	ctx = utils.SetMillIdInContext(ctx, mill.ID)

	inward, err := models.GetInwardSummary(ctx, mill.ID, nil, nil)
	if err != nil {
		t.Fatalf("GetInwardSummary: %v", err)
	}
	if inward.TotalEntries != 0 || inward.TotalBags != 0 {
		t.Fatalf("expected zero counts, got %+v", inward)
	}
	if !inward.TotalNetWeight.IsZero() || !inward.TotalGrossWeight.IsZero() {
		t.Fatalf("expected zero weights, got %+v", inward)
	}

	ledger, err := models.GetStockLedgerSummary(ctx, mill.ID, nil, nil, nil)
	if err != nil {
		t.Fatalf("GetStockLedgerSummary: %v", err)
	}
	if !ledger.TotalCredit.IsZero() || !ledger.TotalDebit.IsZero() || !ledger.NetMovement.IsZero() {
		t.Fatalf("expected zero quantities, got %+v", ledger)
	}
	if ledger.CreditBags != 0 || ledger.DebitBags != 0 || ledger.TransactionCount != 0 {
		t.Fatalf("expected zero counts, got %+v", ledger)
	}

	// no transactions at all for the combination
	balance, err := models.GetStockBalance(ctx, mill.ID, models.CommodityFRK, "unknown", nil)
	if err != nil {
		t.Fatalf("GetStockBalance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("expected zero balance for unknown variety, got %s", balance.String())
	}
}

// Regression: a party referenced by any document type cannot be deleted,
// not just one with inward entries.
func TestDeleteParty_BlockedByReferencingDocuments(t *testing.T) {
	ctx := setupIntegration(t)

	mill, err := models.CreateMill(ctx, &models.NewMill{Name: "Reference Mill"})
	if err != nil {
		t.Fatalf("CreateMill: %v", err)
	}
	ctx = utils.SetMillIdInContext(ctx, mill.ID)

	party, err := models.CreateParty(ctx, mill.ID, &models.NewParty{Name: "Venkata Traders"})
	if err != nil {
		t.Fatalf("CreateParty: %v", err)
	}

	deal, err := models.CreateSaleDeal(ctx, mill.ID, &models.NewSaleDeal{
		Date:        models.DateString(time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)),
		Commodity:   models.CommodityRice,
		Variety:     "BPT",
		PartyId:     party.ID,
		Bags:        40,
		QtyQuintals: decimal.NewFromInt(20),
		Rate:        decimal.NewFromInt(5200),
	})
	if err != nil {
		t.Fatalf("CreateSaleDeal: %v", err)
	}

	if _, err := models.DeleteParty(ctx, mill.ID, party.ID); err == nil {
		t.Fatalf("expected delete to be blocked while a sale deal references the party")
	}

	if _, err := models.DeleteSaleDeal(ctx, mill.ID, deal.ID); err != nil {
		t.Fatalf("DeleteSaleDeal: %v", err)
	}
	if _, err := models.DeleteParty(ctx, mill.ID, party.ID); err != nil {
		t.Fatalf("DeleteParty after removing the reference: %v", err)
	}
}

// Regression: search must treat LIKE wildcards in the needle as literals.
func TestPaginateParties_SearchEscapesWildcards(t *testing.T) {
	ctx := setupIntegration(t)

	mill, err := models.CreateMill(ctx, &models.NewMill{Name: "Escape Mill"})
	if err != nil {
		t.Fatalf("CreateMill: %v", err)
	}
	ctx = utils.SetMillIdInContext(ctx, mill.ID)

	for _, name := range []string{"100% Traders", "100x Traders", "Plain Traders"} {
		if _, err := models.CreateParty(ctx, mill.ID, &models.NewParty{Name: name}); err != nil {
			t.Fatalf("CreateParty(%q): %v", name, err)
		}
	}

	results, pagination, err := models.PaginateParties(ctx, mill.ID, &models.QueryParams{
		Search: "100%",
	})
	if err != nil {
		t.Fatalf("PaginateParties: %v", err)
	}
	if pagination.Total != 1 || len(results) != 1 {
		t.Fatalf("expected exactly 1 match for literal %%, got %d", pagination.Total)
	}
	if results[0].Name != "100% Traders" {
		t.Fatalf("expected '100%% Traders', got %q", results[0].Name)
	}
}

func setupIntegration(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "mill_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := config.ClearRedis(context.Background()); err != nil {
		t.Fatalf("ClearRedis: %v", err)
	}
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetIsAdminInContext(ctx, true)
	return ctx
}

func waitForPosted(t *testing.T, ctx context.Context, millId string, refModel models.StockReferenceType, refId int) {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := models.GetStockPostingStatus(ctx, millId, refModel, refId)
		if err == nil && rec.Status == models.StockPostingStatusPosted {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("posting %s/%d did not reach POSTED in time", refModel, refId)
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mill-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("mill-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=mill_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
