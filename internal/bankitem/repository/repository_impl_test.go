package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ynterhq/gateway/internal/bankitem/domain"
)

func openTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(&domain.BankItem{}))
	return Provide(conn)
}

func TestUpsertRotatesToken(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.BankItem{
		ItemID:        "item_1",
		CustomerID:    "cus_1",
		InstitutionID: "ins_1",
		AccessToken:   "access-old",
	}))

	// Re-linking the same institution replaces the stored token.
	require.NoError(t, repo.Upsert(ctx, &domain.BankItem{
		ItemID:        "item_2",
		CustomerID:    "cus_1",
		InstitutionID: "ins_1",
		AccessToken:   "access-new",
	}))

	item, err := repo.Get(ctx, "cus_1", "ins_1")
	require.NoError(t, err)
	assert.Equal(t, "item_2", item.ItemID)
	assert.Equal(t, "access-new", item.AccessToken)

	count, err := repo.CountByCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.Get(context.Background(), "cus_1", "ins_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCountByCustomer(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Upsert(ctx, &domain.BankItem{
			ItemID:        fmt.Sprintf("item_%d", i),
			CustomerID:    "cus_1",
			InstitutionID: fmt.Sprintf("ins_%d", i),
			AccessToken:   "access",
		}))
	}
	require.NoError(t, repo.Upsert(ctx, &domain.BankItem{
		ItemID:        "item_other",
		CustomerID:    "cus_2",
		InstitutionID: "ins_0",
		AccessToken:   "access",
	}))

	count, err := repo.CountByCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.BankItem{
		ItemID:        "item_1",
		CustomerID:    "cus_1",
		InstitutionID: "ins_1",
		AccessToken:   "access",
	}))

	require.NoError(t, repo.Delete(ctx, "cus_1", "ins_1"))

	_, err := repo.Get(ctx, "cus_1", "ins_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
