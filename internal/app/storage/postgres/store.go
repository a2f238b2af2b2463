package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/asset"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/hub"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/lending"
	"github.com/DFY-Network/pawnshop_layer/internal/app/domain/reputation"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.HubStore = (*Store)(nil)
var _ storage.AssetStore = (*Store)(nil)
var _ storage.LendingStore = (*Store)(nil)
var _ storage.ReputationStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", storage.ErrNotFound, what, id)
	}
	return err
}

// --- HubStore ---------------------------------------------------------------

func (s *Store) SaveRegistration(ctx context.Context, reg hub.Registration) (hub.Registration, error) {
	reg.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_registrations (name, address, artifact, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET address = $2, artifact = $3, updated_at = $4
	`, reg.Name, reg.Address, reg.Artifact, reg.UpdatedAt)
	if err != nil {
		return hub.Registration{}, err
	}
	return reg, nil
}

func (s *Store) GetRegistration(ctx context.Context, name string) (hub.Registration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, address, artifact, updated_at
		FROM pawn_registrations
		WHERE name = $1
	`, name)

	var reg hub.Registration
	if err := row.Scan(&reg.Name, &reg.Address, &reg.Artifact, &reg.UpdatedAt); err != nil {
		return hub.Registration{}, notFound(err, "registration", name)
	}
	return reg, nil
}

func (s *Store) ListRegistrations(ctx context.Context) ([]hub.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, address, artifact, updated_at
		FROM pawn_registrations
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []hub.Registration
	for rows.Next() {
		var reg hub.Registration
		if err := rows.Scan(&reg.Name, &reg.Address, &reg.Artifact, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, reg)
	}
	return result, rows.Err()
}

func (s *Store) SaveSystemConfig(ctx context.Context, cfg hub.SystemConfig) (hub.SystemConfig, error) {
	cfg.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_system_config (id, fee_wallet, fee_token, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET fee_wallet = $1, fee_token = $2, updated_at = $3
	`, cfg.FeeWallet, cfg.FeeToken, cfg.UpdatedAt)
	if err != nil {
		return hub.SystemConfig{}, err
	}
	return cfg, nil
}

func (s *Store) GetSystemConfig(ctx context.Context) (hub.SystemConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fee_wallet, fee_token, updated_at
		FROM pawn_system_config
		WHERE id = 1
	`)

	var cfg hub.SystemConfig
	if err := row.Scan(&cfg.FeeWallet, &cfg.FeeToken, &cfg.UpdatedAt); err != nil {
		return hub.SystemConfig{}, notFound(err, "system config", "")
	}
	return cfg, nil
}

func (s *Store) SaveFeeSchedule(ctx context.Context, schedule hub.FeeSchedule) (hub.FeeSchedule, error) {
	schedule.UpdatedAt = time.Now().UTC()
	token := strings.ToLower(schedule.FeeToken)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_fee_schedules (fee_token, evaluation_fee, minting_fee, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fee_token) DO UPDATE SET evaluation_fee = $2, minting_fee = $3, updated_at = $4
	`, token, schedule.EvaluationFee, schedule.MintingFee, schedule.UpdatedAt)
	if err != nil {
		return hub.FeeSchedule{}, err
	}
	return schedule, nil
}

func (s *Store) GetFeeSchedule(ctx context.Context, feeToken string) (hub.FeeSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fee_token, evaluation_fee, minting_fee, updated_at
		FROM pawn_fee_schedules
		WHERE fee_token = $1
	`, strings.ToLower(feeToken))

	var schedule hub.FeeSchedule
	if err := row.Scan(&schedule.FeeToken, &schedule.EvaluationFee, &schedule.MintingFee, &schedule.UpdatedAt); err != nil {
		return hub.FeeSchedule{}, notFound(err, "fee schedule", feeToken)
	}
	return schedule, nil
}

func (s *Store) GrantRole(ctx context.Context, role hub.Role, account string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_roles (role, account, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (role, account) DO NOTHING
	`, string(role), strings.ToLower(account), time.Now().UTC())
	return err
}

func (s *Store) RevokeRole(ctx context.Context, role hub.Role, account string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM pawn_roles WHERE role = $1 AND account = $2
	`, string(role), strings.ToLower(account))
	return err
}

func (s *Store) HasRole(ctx context.Context, role hub.Role, account string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM pawn_roles WHERE role = $1 AND account = $2)
	`, string(role), strings.ToLower(account))

	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) SaveWhitelistedCollateral(ctx context.Context, entry hub.WhitelistedCollateral) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_collateral_whitelist (token_contract, standard, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_contract) DO UPDATE SET standard = $2
	`, strings.ToLower(entry.TokenContract), entry.Standard, entry.AddedAt)
	return err
}

func (s *Store) IsWhitelistedCollateral(ctx context.Context, tokenContract string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM pawn_collateral_whitelist WHERE token_contract = $1)
	`, strings.ToLower(tokenContract))

	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) CreateEvaluatorRecord(ctx context.Context, rec hub.EvaluatorRecord) (hub.EvaluatorRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_evaluator_records (id, account, status, created_at)
		VALUES ($1, $2, $3, $4)
	`, rec.ID, strings.ToLower(rec.Account), string(rec.Status), rec.CreatedAt)
	if err != nil {
		return hub.EvaluatorRecord{}, err
	}
	return rec, nil
}

func (s *Store) ListEvaluatorRecords(ctx context.Context, account string) ([]hub.EvaluatorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, status, created_at
		FROM pawn_evaluator_records
		WHERE $1 = '' OR account = $1
		ORDER BY created_at
	`, strings.ToLower(account))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []hub.EvaluatorRecord
	for rows.Next() {
		var rec hub.EvaluatorRecord
		if err := rows.Scan(&rec.ID, &rec.Account, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// --- AssetStore -------------------------------------------------------------

func (s *Store) CreateAssetRequest(ctx context.Context, req asset.Request) (asset.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_asset_requests (id, owner, content_id, collection_address, collection_standard, declared_value, fee_token, external_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, req.ID, req.Owner, req.ContentID, req.CollectionAddress, string(req.CollectionStandard), req.DeclaredValue, req.FeeToken, req.ExternalID, string(req.Status), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return asset.Request{}, err
	}
	return req, nil
}

func (s *Store) UpdateAssetRequest(ctx context.Context, req asset.Request) (asset.Request, error) {
	existing, err := s.GetAssetRequest(ctx, req.ID)
	if err != nil {
		return asset.Request{}, err
	}

	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE pawn_asset_requests
		SET content_id = $2, external_id = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, req.ID, req.ContentID, req.ExternalID, string(req.Status), req.UpdatedAt)
	if err != nil {
		return asset.Request{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return asset.Request{}, fmt.Errorf("%w: asset request %s", storage.ErrNotFound, req.ID)
	}
	return req, nil
}

func (s *Store) GetAssetRequest(ctx context.Context, id string) (asset.Request, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, content_id, collection_address, collection_standard, declared_value, fee_token, external_id, status, created_at, updated_at
		FROM pawn_asset_requests
		WHERE id = $1
	`, id)

	var req asset.Request
	if err := row.Scan(&req.ID, &req.Owner, &req.ContentID, &req.CollectionAddress, &req.CollectionStandard, &req.DeclaredValue, &req.FeeToken, &req.ExternalID, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return asset.Request{}, notFound(err, "asset request", id)
	}
	return req, nil
}

func (s *Store) ListAssetRequests(ctx context.Context, owner string) ([]asset.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, content_id, collection_address, collection_standard, declared_value, fee_token, external_id, status, created_at, updated_at
		FROM pawn_asset_requests
		WHERE $1 = '' OR lower(owner) = lower($1)
		ORDER BY created_at
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []asset.Request
	for rows.Next() {
		var req asset.Request
		if err := rows.Scan(&req.ID, &req.Owner, &req.ContentID, &req.CollectionAddress, &req.CollectionStandard, &req.DeclaredValue, &req.FeeToken, &req.ExternalID, &req.Status, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (s *Store) CreateAppointment(ctx context.Context, apt asset.Appointment) (asset.Appointment, error) {
	if apt.ID == "" {
		apt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	apt.CreatedAt = now
	apt.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_appointments (id, asset_id, asset_owner, evaluator, evaluation_fee, fee_token, escrow_id, scheduled_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, apt.ID, apt.AssetID, apt.AssetOwner, apt.Evaluator, apt.EvaluationFee, apt.FeeToken, apt.EscrowID, toNullTime(apt.ScheduledTime), string(apt.Status), apt.CreatedAt, apt.UpdatedAt)
	if err != nil {
		return asset.Appointment{}, err
	}
	return apt, nil
}

func (s *Store) UpdateAppointment(ctx context.Context, apt asset.Appointment) (asset.Appointment, error) {
	existing, err := s.GetAppointment(ctx, apt.ID)
	if err != nil {
		return asset.Appointment{}, err
	}

	apt.CreatedAt = existing.CreatedAt
	apt.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE pawn_appointments
		SET evaluator = $2, escrow_id = $3, scheduled_time = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, apt.ID, apt.Evaluator, apt.EscrowID, toNullTime(apt.ScheduledTime), string(apt.Status), apt.UpdatedAt)
	if err != nil {
		return asset.Appointment{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return asset.Appointment{}, fmt.Errorf("%w: appointment %s", storage.ErrNotFound, apt.ID)
	}
	return apt, nil
}

func (s *Store) GetAppointment(ctx context.Context, id string) (asset.Appointment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, asset_owner, evaluator, evaluation_fee, fee_token, escrow_id, scheduled_time, status, created_at, updated_at
		FROM pawn_appointments
		WHERE id = $1
	`, id)

	apt, err := scanAppointment(row)
	if err != nil {
		return asset.Appointment{}, notFound(err, "appointment", id)
	}
	return apt, nil
}

func (s *Store) ListAppointmentsByAsset(ctx context.Context, assetID string) ([]asset.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, asset_owner, evaluator, evaluation_fee, fee_token, escrow_id, scheduled_time, status, created_at, updated_at
		FROM pawn_appointments
		WHERE asset_id = $1
		ORDER BY created_at
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []asset.Appointment
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, apt)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (asset.Appointment, error) {
	var (
		apt       asset.Appointment
		scheduled sql.NullTime
	)
	if err := row.Scan(&apt.ID, &apt.AssetID, &apt.AssetOwner, &apt.Evaluator, &apt.EvaluationFee, &apt.FeeToken, &apt.EscrowID, &scheduled, &apt.Status, &apt.CreatedAt, &apt.UpdatedAt); err != nil {
		return asset.Appointment{}, err
	}
	if scheduled.Valid {
		apt.ScheduledTime = scheduled.Time.UTC()
	}
	return apt, nil
}

func (s *Store) CreateEvaluation(ctx context.Context, eval asset.Evaluation) (asset.Evaluation, error) {
	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	eval.CreatedAt = now
	eval.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_evaluations (id, asset_id, appointment_id, evaluator, appraised_value, content_id, minting_fee, fee_token, external_id, escrow_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, eval.ID, eval.AssetID, eval.AppointmentID, eval.Evaluator, eval.AppraisedValue, eval.ContentID, eval.MintingFee, eval.FeeToken, eval.ExternalID, eval.EscrowID, string(eval.Status), eval.CreatedAt, eval.UpdatedAt)
	if err != nil {
		return asset.Evaluation{}, err
	}
	return eval, nil
}

func (s *Store) UpdateEvaluation(ctx context.Context, eval asset.Evaluation) (asset.Evaluation, error) {
	existing, err := s.GetEvaluation(ctx, eval.ID)
	if err != nil {
		return asset.Evaluation{}, err
	}

	eval.CreatedAt = existing.CreatedAt
	eval.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE pawn_evaluations
		SET external_id = $2, escrow_id = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, eval.ID, eval.ExternalID, eval.EscrowID, string(eval.Status), eval.UpdatedAt)
	if err != nil {
		return asset.Evaluation{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return asset.Evaluation{}, fmt.Errorf("%w: evaluation %s", storage.ErrNotFound, eval.ID)
	}
	return eval, nil
}

func (s *Store) GetEvaluation(ctx context.Context, id string) (asset.Evaluation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, appointment_id, evaluator, appraised_value, content_id, minting_fee, fee_token, external_id, escrow_id, status, created_at, updated_at
		FROM pawn_evaluations
		WHERE id = $1
	`, id)

	var eval asset.Evaluation
	if err := row.Scan(&eval.ID, &eval.AssetID, &eval.AppointmentID, &eval.Evaluator, &eval.AppraisedValue, &eval.ContentID, &eval.MintingFee, &eval.FeeToken, &eval.ExternalID, &eval.EscrowID, &eval.Status, &eval.CreatedAt, &eval.UpdatedAt); err != nil {
		return asset.Evaluation{}, notFound(err, "evaluation", id)
	}
	return eval, nil
}

func (s *Store) ListEvaluationsByAsset(ctx context.Context, assetID string) ([]asset.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_id, appointment_id, evaluator, appraised_value, content_id, minting_fee, fee_token, external_id, escrow_id, status, created_at, updated_at
		FROM pawn_evaluations
		WHERE asset_id = $1
		ORDER BY created_at
	`, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []asset.Evaluation
	for rows.Next() {
		var eval asset.Evaluation
		if err := rows.Scan(&eval.ID, &eval.AssetID, &eval.AppointmentID, &eval.Evaluator, &eval.AppraisedValue, &eval.ContentID, &eval.MintingFee, &eval.FeeToken, &eval.ExternalID, &eval.EscrowID, &eval.Status, &eval.CreatedAt, &eval.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, eval)
	}
	return result, rows.Err()
}

// --- LendingStore -----------------------------------------------------------

func (s *Store) CreateCollateral(ctx context.Context, col lending.Collateral) (lending.Collateral, error) {
	if col.ID == "" {
		col.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	col.CreatedAt = now
	col.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_collaterals (id, owner, token_contract, token_id, token_standard, token_quantity, expected_loan_amount, loan_asset, duration_qty, duration_type, repayment_cycle_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, col.ID, col.Owner, col.TokenContract, col.TokenID, string(col.TokenStandard), col.TokenQuantity, col.ExpectedLoanAmount, col.LoanAsset, col.DurationQty, string(col.DurationType), string(col.RepaymentCycleType), string(col.Status), col.CreatedAt, col.UpdatedAt)
	if err != nil {
		return lending.Collateral{}, err
	}
	return col, nil
}

func (s *Store) UpdateCollateral(ctx context.Context, col lending.Collateral) (lending.Collateral, error) {
	existing, err := s.GetCollateral(ctx, col.ID)
	if err != nil {
		return lending.Collateral{}, err
	}

	col.CreatedAt = existing.CreatedAt
	col.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE pawn_collaterals
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, col.ID, string(col.Status), col.UpdatedAt)
	if err != nil {
		return lending.Collateral{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return lending.Collateral{}, fmt.Errorf("%w: collateral %s", storage.ErrNotFound, col.ID)
	}
	return col, nil
}

func (s *Store) GetCollateral(ctx context.Context, id string) (lending.Collateral, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, token_contract, token_id, token_standard, token_quantity, expected_loan_amount, loan_asset, duration_qty, duration_type, repayment_cycle_type, status, created_at, updated_at
		FROM pawn_collaterals
		WHERE id = $1
	`, id)

	var col lending.Collateral
	if err := row.Scan(&col.ID, &col.Owner, &col.TokenContract, &col.TokenID, &col.TokenStandard, &col.TokenQuantity, &col.ExpectedLoanAmount, &col.LoanAsset, &col.DurationQty, &col.DurationType, &col.RepaymentCycleType, &col.Status, &col.CreatedAt, &col.UpdatedAt); err != nil {
		return lending.Collateral{}, notFound(err, "collateral", id)
	}
	return col, nil
}

func (s *Store) ListCollaterals(ctx context.Context, owner string) ([]lending.Collateral, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, token_contract, token_id, token_standard, token_quantity, expected_loan_amount, loan_asset, duration_qty, duration_type, repayment_cycle_type, status, created_at, updated_at
		FROM pawn_collaterals
		WHERE $1 = '' OR lower(owner) = lower($1)
		ORDER BY created_at
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lending.Collateral
	for rows.Next() {
		var col lending.Collateral
		if err := rows.Scan(&col.ID, &col.Owner, &col.TokenContract, &col.TokenID, &col.TokenStandard, &col.TokenQuantity, &col.ExpectedLoanAmount, &col.LoanAsset, &col.DurationQty, &col.DurationType, &col.RepaymentCycleType, &col.Status, &col.CreatedAt, &col.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, col)
	}
	return result, rows.Err()
}

func (s *Store) CreateOffer(ctx context.Context, offer lending.Offer) (lending.Offer, error) {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_offers (id, collateral_id, lender, repayment_asset, loan_amount, interest_rate, duration_deadline, loan_duration_type, repayment_cycle_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, offer.ID, offer.CollateralID, offer.Lender, offer.RepaymentAsset, offer.LoanAmount, offer.InterestRate, toNullTime(offer.DurationDeadline), string(offer.LoanDurationType), string(offer.RepaymentCycleType), string(offer.Status), offer.CreatedAt, offer.UpdatedAt)
	if err != nil {
		return lending.Offer{}, err
	}
	return offer, nil
}

func (s *Store) UpdateOffer(ctx context.Context, offer lending.Offer) (lending.Offer, error) {
	existing, err := s.GetOffer(ctx, offer.ID)
	if err != nil {
		return lending.Offer{}, err
	}

	offer.CreatedAt = existing.CreatedAt
	offer.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE pawn_offers
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, offer.ID, string(offer.Status), offer.UpdatedAt)
	if err != nil {
		return lending.Offer{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return lending.Offer{}, fmt.Errorf("%w: offer %s", storage.ErrNotFound, offer.ID)
	}
	return offer, nil
}

func (s *Store) GetOffer(ctx context.Context, id string) (lending.Offer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, collateral_id, lender, repayment_asset, loan_amount, interest_rate, duration_deadline, loan_duration_type, repayment_cycle_type, status, created_at, updated_at
		FROM pawn_offers
		WHERE id = $1
	`, id)

	offer, err := scanOffer(row)
	if err != nil {
		return lending.Offer{}, notFound(err, "offer", id)
	}
	return offer, nil
}

func (s *Store) ListOffersByCollateral(ctx context.Context, collateralID string) ([]lending.Offer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collateral_id, lender, repayment_asset, loan_amount, interest_rate, duration_deadline, loan_duration_type, repayment_cycle_type, status, created_at, updated_at
		FROM pawn_offers
		WHERE collateral_id = $1
		ORDER BY created_at
	`, collateralID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lending.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, offer)
	}
	return result, rows.Err()
}

func scanOffer(row scanner) (lending.Offer, error) {
	var (
		offer    lending.Offer
		deadline sql.NullTime
	)
	if err := row.Scan(&offer.ID, &offer.CollateralID, &offer.Lender, &offer.RepaymentAsset, &offer.LoanAmount, &offer.InterestRate, &deadline, &offer.LoanDurationType, &offer.RepaymentCycleType, &offer.Status, &offer.CreatedAt, &offer.UpdatedAt); err != nil {
		return lending.Offer{}, err
	}
	if deadline.Valid {
		offer.DurationDeadline = deadline.Time.UTC()
	}
	return offer, nil
}

func (s *Store) CreateLoanContract(ctx context.Context, lc lending.LoanContract) (lending.LoanContract, error) {
	if lc.ID == "" {
		lc.ID = uuid.NewString()
	}
	lc.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_loan_contracts (id, collateral_id, offer_id, borrower, lender, loan_asset, loan_amount, repayment_asset, interest_rate, exchange_rate, loan_duration_type, repayment_cycle_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, lc.ID, lc.CollateralID, lc.OfferID, lc.Terms.Borrower, lc.Terms.Lender, lc.Terms.LoanAsset, lc.Terms.LoanAmount, lc.Terms.RepaymentAsset, lc.Terms.InterestRate, lc.Terms.ExchangeRate, string(lc.Terms.LoanDurationType), string(lc.Terms.RepaymentCycleType), lc.CreatedAt)
	if err != nil {
		return lending.LoanContract{}, err
	}
	return lc, nil
}

func (s *Store) GetLoanContract(ctx context.Context, id string) (lending.LoanContract, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, collateral_id, offer_id, borrower, lender, loan_asset, loan_amount, repayment_asset, interest_rate, exchange_rate, loan_duration_type, repayment_cycle_type, created_at
		FROM pawn_loan_contracts
		WHERE id = $1
	`, id)

	lc, err := scanLoanContract(row)
	if err != nil {
		return lending.LoanContract{}, notFound(err, "loan contract", id)
	}
	return lc, nil
}

func (s *Store) ListLoanContracts(ctx context.Context, collateralID string) ([]lending.LoanContract, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collateral_id, offer_id, borrower, lender, loan_asset, loan_amount, repayment_asset, interest_rate, exchange_rate, loan_duration_type, repayment_cycle_type, created_at
		FROM pawn_loan_contracts
		WHERE $1 = '' OR collateral_id = $1
		ORDER BY created_at
	`, collateralID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []lending.LoanContract
	for rows.Next() {
		lc, err := scanLoanContract(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, lc)
	}
	return result, rows.Err()
}

func scanLoanContract(row scanner) (lending.LoanContract, error) {
	var lc lending.LoanContract
	if err := row.Scan(&lc.ID, &lc.CollateralID, &lc.OfferID, &lc.Terms.Borrower, &lc.Terms.Lender, &lc.Terms.LoanAsset, &lc.Terms.LoanAmount, &lc.Terms.RepaymentAsset, &lc.Terms.InterestRate, &lc.Terms.ExchangeRate, &lc.Terms.LoanDurationType, &lc.Terms.RepaymentCycleType, &lc.CreatedAt); err != nil {
		return lending.LoanContract{}, err
	}
	return lc, nil
}

// --- ReputationStore --------------------------------------------------------

func (s *Store) GetScore(ctx context.Context, account string) (reputation.Score, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account, points, updated_at
		FROM pawn_reputation_scores
		WHERE account = $1
	`, strings.ToLower(account))

	var score reputation.Score
	if err := row.Scan(&score.Account, &score.Points, &score.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reputation.Score{Account: account}, nil
		}
		return reputation.Score{}, err
	}
	return score, nil
}

func (s *Store) SaveScore(ctx context.Context, score reputation.Score) (reputation.Score, error) {
	score.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_reputation_scores (account, points, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account) DO UPDATE SET points = $2, updated_at = $3
	`, strings.ToLower(score.Account), score.Points, score.UpdatedAt)
	if err != nil {
		return reputation.Score{}, err
	}
	return score, nil
}

func (s *Store) CreateActivity(ctx context.Context, act reputation.Activity) (reputation.Activity, error) {
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	act.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pawn_reputation_activities (id, account, reason, caller, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, act.ID, strings.ToLower(act.Account), string(act.Reason), act.Caller, act.CreatedAt)
	if err != nil {
		return reputation.Activity{}, err
	}
	return act, nil
}

func (s *Store) ListActivities(ctx context.Context, account string) ([]reputation.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, reason, caller, created_at
		FROM pawn_reputation_activities
		WHERE account = $1
		ORDER BY created_at
	`, strings.ToLower(account))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reputation.Activity
	for rows.Next() {
		var act reputation.Activity
		if err := rows.Scan(&act.ID, &act.Account, &act.Reason, &act.Caller, &act.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, act)
	}
	return result, rows.Err()
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
