/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// Season queries
	querySeasonColumns = `
		id, name, chain, start_date, end_date, status,
		vault_rates, social_conversion_rate, deposits_enabled, withdrawals_enabled,
		vaults_locked, redeem_period_days, total_participants, total_shards_issued,
		created_at, updated_at`

	queryGetSeason = `
		SELECT ` + querySeasonColumns + `
		FROM seasons
		WHERE id = ?`

	queryGetAllSeasons = `
		SELECT ` + querySeasonColumns + `
		FROM seasons
		ORDER BY id`

	queryGetSeasonsByChain = `
		SELECT ` + querySeasonColumns + `
		FROM seasons
		WHERE chain = ?
		ORDER BY id`

	queryGetActiveSeason = `
		SELECT ` + querySeasonColumns + `
		FROM seasons
		WHERE chain = ? AND status = 'active'
		ORDER BY id DESC
		LIMIT 1`

	queryInsertSeason = `
		INSERT INTO seasons (
			name, chain, start_date, end_date, status,
			vault_rates, social_conversion_rate, deposits_enabled, withdrawals_enabled,
			vaults_locked, redeem_period_days
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateSeason = `
		UPDATE seasons
		SET name = ?, end_date = ?, vault_rates = ?, social_conversion_rate = ?,
		    deposits_enabled = ?, withdrawals_enabled = ?, vaults_locked = ?,
		    redeem_period_days = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryUpdateSeasonStatus = `
		UPDATE seasons
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?`

	// Season totals are summed in Go with decimal arithmetic. SQLite's SUM
	// runs in float64 and rounds the stored amounts.
	querySeasonBalanceTotals = `
		SELECT total_shards
		FROM shard_balances
		WHERE season_id = ?`

	queryWriteSeasonTotals = `
		UPDATE seasons
		SET total_participants = ?, total_shards_issued = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Migration window queries
	queryGetMigrationConfig = `
		SELECT season_id, from_chain, to_chain, start_time, end_time, deadline,
		       user_action_required, supported_vaults
		FROM migration_configs
		WHERE season_id = ?`

	queryUpsertMigrationConfig = `
		INSERT INTO migration_configs (
			season_id, from_chain, to_chain, start_time, end_time, deadline,
			user_action_required, supported_vaults
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(season_id) DO UPDATE SET
			from_chain = excluded.from_chain,
			to_chain = excluded.to_chain,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			deadline = excluded.deadline,
			user_action_required = excluded.user_action_required,
			supported_vaults = excluded.supported_vaults`

	// Vault queries
	queryGetVault = `
		SELECT address, season_id, chain, status, underlying_asset,
		       withdrawals_enabled, locked_until_mainnet, redeem_delay_days,
		       early_withdrawal_penalty, created_at
		FROM vault_configs
		WHERE LOWER(address) = LOWER(?) AND season_id = ?`

	queryGetVaultsBySeason = `
		SELECT address, season_id, chain, status, underlying_asset,
		       withdrawals_enabled, locked_until_mainnet, redeem_delay_days,
		       early_withdrawal_penalty, created_at
		FROM vault_configs
		WHERE season_id = ?
		ORDER BY address`

	queryInsertVault = `
		INSERT INTO vault_configs (
			address, season_id, chain, status, underlying_asset,
			withdrawals_enabled, locked_until_mainnet, redeem_delay_days, early_withdrawal_penalty
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// Balance queries
	queryGetShardBalance = `
		SELECT wallet_address, season_id, staking_shards, social_shards,
		       developer_shards, referral_shards, total_shards, last_calculated_at, version
		FROM shard_balances
		WHERE wallet_address = ? AND season_id = ?`

	queryListWallets = `
		SELECT wallet_address
		FROM shard_balances
		WHERE season_id = ?
		ORDER BY wallet_address`

	queryCountParticipants = `
		SELECT COUNT(*)
		FROM shard_balances
		WHERE season_id = ?`

	// The balance row is replaced with totals aggregated from the earning
	// history, summed in Go with decimal arithmetic. Summing fresh on every
	// write keeps replays from double-counting.
	queryEarningCategoryRows = `
		SELECT staking_shards, social_shards, developer_shards, referral_shards, daily_total
		FROM earning_history
		WHERE wallet_address = ? AND season_id = ?`

	queryUpsertShardBalance = `
		INSERT INTO shard_balances (
			wallet_address, season_id, staking_shards, social_shards,
			developer_shards, referral_shards, total_shards, last_calculated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, 1)
		ON CONFLICT(wallet_address, season_id) DO UPDATE SET
			staking_shards = excluded.staking_shards,
			social_shards = excluded.social_shards,
			developer_shards = excluded.developer_shards,
			referral_shards = excluded.referral_shards,
			total_shards = excluded.total_shards,
			last_calculated_at = CURRENT_TIMESTAMP,
			version = shard_balances.version + 1`

	// Earning history queries
	queryGetEarningEntry = `
		SELECT id, wallet_address, season_id, date, staking_shards, social_shards,
		       developer_shards, referral_shards, daily_total, vault_breakdown,
		       calculation_hash, created_at
		FROM earning_history
		WHERE wallet_address = ? AND season_id = ? AND date = ?`

	queryGetEarningHistory = `
		SELECT id, wallet_address, season_id, date, staking_shards, social_shards,
		       developer_shards, referral_shards, daily_total, vault_breakdown,
		       calculation_hash, created_at
		FROM earning_history
		WHERE wallet_address = ? AND season_id = ? AND date >= ? AND date <= ?
		ORDER BY date`

	queryTrailingEntries = `
		SELECT id, wallet_address, season_id, date, staking_shards, social_shards,
		       developer_shards, referral_shards, daily_total, vault_breakdown,
		       calculation_hash, created_at
		FROM earning_history
		WHERE wallet_address = ? AND season_id = ? AND date < ?
		ORDER BY date DESC
		LIMIT ?`

	queryUpsertEarningEntry = `
		INSERT INTO earning_history (
			id, wallet_address, season_id, date, staking_shards, social_shards,
			developer_shards, referral_shards, daily_total, vault_breakdown, calculation_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address, season_id, date) DO UPDATE SET
			staking_shards = excluded.staking_shards,
			social_shards = excluded.social_shards,
			developer_shards = excluded.developer_shards,
			referral_shards = excluded.referral_shards,
			daily_total = excluded.daily_total,
			vault_breakdown = excluded.vault_breakdown,
			calculation_hash = excluded.calculation_hash`

	// Fraud flag queries
	queryInsertFraudFlag = `
		INSERT INTO fraud_flags (id, wallet_address, season_id, date, reason)
		VALUES (?, ?, ?, ?, ?)`

	queryGetFraudFlags = `
		SELECT id, wallet_address, season_id, date, reason, created_at
		FROM fraud_flags
		WHERE season_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	// Referral queries
	queryReferralColumns = `
		id, referrer_address, referee_address, season_id, status, activation_date,
		balance_at_activation, total_shards_earned, version, created_at, updated_at`

	queryInsertReferral = `
		INSERT INTO referrals (
			id, referrer_address, referee_address, season_id, status, balance_at_activation, total_shards_earned
		) VALUES (?, ?, ?, ?, ?, '0', '0')`

	queryGetReferral = `
		SELECT ` + queryReferralColumns + `
		FROM referrals
		WHERE id = ?`

	queryGetReferralByReferee = `
		SELECT ` + queryReferralColumns + `
		FROM referrals
		WHERE referee_address = ? AND season_id = ?`

	queryCountByReferrer = `
		SELECT COUNT(*)
		FROM referrals
		WHERE referrer_address = ? AND season_id = ?`

	queryGetReferralsByReferrer = `
		SELECT ` + queryReferralColumns + `
		FROM referrals
		WHERE referrer_address = ? AND season_id = ?
		ORDER BY created_at`

	queryGetReferralsByStatus = `
		SELECT ` + queryReferralColumns + `
		FROM referrals
		WHERE season_id = ? AND status = ?
		ORDER BY created_at`

	queryUpdateReferral = `
		UPDATE referrals
		SET status = ?, activation_date = ?, balance_at_activation = ?,
		    total_shards_earned = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	queryUpsertReferralEarning = `
		INSERT INTO referral_earnings (referral_id, date, shards)
		VALUES (?, ?, ?)
		ON CONFLICT(referral_id, date) DO UPDATE SET shards = excluded.shards`

	queryReferralEarningsExcluding = `
		SELECT shards
		FROM referral_earnings
		WHERE referral_id = ? AND date != ?`

	queryReferralEarnings = `
		SELECT shards
		FROM referral_earnings
		WHERE referral_id = ?`

	queryWriteReferralTotal = `
		UPDATE referrals
		SET total_shards_earned = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
)
