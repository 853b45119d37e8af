package repository

import (
	"context"
	"errors"
	"testing"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return New(mock), mock
}

func TestGetSubstrateLoadsRecipeInPositionOrder(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT substrate_id, name, is_active FROM substrates`).WithArgs("SUB-A").
		WillReturnRows(pgxmock.NewRows([]string{"substrate_id", "name", "is_active"}).AddRow("SUB-A", "Straw mix", true))
	mock.ExpectQuery(`FROM substrate_mediums`).WithArgs("SUB-A").
		WillReturnRows(pgxmock.NewRows([]string{"medium_id", "medium_name", "qty_g"}).
			AddRow("M1", "Wheat straw", 1200.0).
			AddRow("M2", "Sawdust", 300.0))
	mock.ExpectQuery(`FROM substrate_supplements`).WithArgs("SUB-A").
		WillReturnRows(pgxmock.NewRows([]string{"supplement_id", "supplement_name", "qty", "unit"}).
			AddRow("S1", "Gypsum", 20.0, "g"))

	got, err := repo.GetSubstrate(context.Background(), "SUB-A")
	require.NoError(t, err)
	assert.Equal(t, "Straw mix", got.Name)
	require.Len(t, got.Mediums, 2)
	assert.Equal(t, "M1", got.Mediums[0].MediumID)
	assert.Equal(t, "M2", got.Mediums[1].MediumID)
	assert.Equal(t, []domain.SupplementLine{{SupplementID: "S1", SupplementName: "Gypsum", Qty: 20, Unit: "g"}}, got.Supplements)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubstrateNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM substrates`).WithArgs("NOPE").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetSubstrate(context.Background(), "NOPE")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStrainsFiltersInactive(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM strains\s+WHERE is_active OR \$1`).WithArgs(false).
		WillReturnRows(pgxmock.NewRows([]string{"strain_code", "strain_vendor_id", "species", "vendor_name", "is_active"}).
			AddRow("OYS-01", "V1", "Pleurotus ostreatus", "", true))

	got, err := repo.ListStrains(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []domain.Strain{{StrainCode: "OYS-01", StrainVendorID: "V1", Species: "Pleurotus ostreatus", IsActive: true}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSubstratesRewritesRecipeLines(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`INSERT INTO substrates`).WithArgs("SUB-A", "Straw mix", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM substrate_mediums`).WithArgs("SUB-A").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM substrate_supplements`).WithArgs("SUB-A").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"substrate_mediums"}, []string{"substrate_id", "position", "medium_id", "medium_name", "qty_g"}).
		WillReturnResult(1)
	mock.ExpectCommit()

	err := repo.UpsertSubstrates(context.Background(), []Substrate{{
		SubstrateID: "SUB-A",
		Name:        "Straw mix",
		IsActive:    true,
		Mediums:     []domain.MediumLine{{MediumID: "M1", MediumName: "Wheat straw", QtyG: 1200}},
	}})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertContaminationCodesRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("connection reset")

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`INSERT INTO contamination_codes`).WithArgs("TRICHO", "Trichoderma", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO contamination_codes`).WithArgs("BACT", "Bacterial blotch", true).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.UpsertContaminationCodes(context.Background(), []domain.ContaminationCode{
		{Code: "TRICHO", Description: "Trichoderma", IsActive: true},
		{Code: "BACT", Description: "Bacterial blotch", IsActive: true},
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
