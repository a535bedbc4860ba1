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

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rebate-ledger-go/internal/hierarchy"
	"rebate-ledger-go/internal/models"
	"rebate-ledger-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying active users")

	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, *user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId int64) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.Int64("user_id", userId))
	return getUserById(ctx, s.db, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	zap.L().Debug("Querying user by email", zap.String("email", email))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserByEmail, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, email)
		}
		zap.L().Error("Failed to query user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by email: %w", err)
	}
	return user, nil
}

// querier is the read surface shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getUserById(ctx context.Context, q querier, userId int64) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %d", store.ErrNotFound, userId)
		}
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return user, nil
}

func (s *Service) CreateUser(ctx context.Context, params store.CreateUserParams) (*models.User, error) {
	zap.L().Info("Creating user", zap.String("name", params.Name), zap.String("email", params.Email))

	role := params.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", store.ErrInvalidAction, role)
	}

	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var taken int
		if err := tx.QueryRowContext(ctx, queryCountUsersByEmail, params.Email).Scan(&taken); err != nil {
			return fmt.Errorf("unable to check email: %w", err)
		}
		if taken > 0 {
			return fmt.Errorf("%w: %s", store.ErrEmailTaken, params.Email)
		}

		var path hierarchy.Path
		if params.UplineId != nil {
			upline, err := getUserById(ctx, tx, *params.UplineId)
			if err != nil {
				return err
			}
			uplinePath, err := hierarchy.Parse(upline.HierarchyList)
			if err != nil {
				return err
			}
			path = uplinePath.Child(upline.Id)
		}

		now := s.now()
		created, err := scanUser(tx.QueryRowContext(ctx, queryInsertUser,
			params.Name, params.Email, string(role), nullInt64(params.UplineId), path.String(), now, now))
		if err != nil {
			return fmt.Errorf("unable to insert user: %w", err)
		}

		// New members join their upline's group.
		if params.UplineId != nil {
			groupId, err := getUserGroupId(ctx, tx, *params.UplineId)
			if err != nil {
				return err
			}
			if groupId != nil {
				if _, err := tx.ExecContext(ctx, queryUpsertGroupMember, *groupId, created.Id); err != nil {
					return fmt.Errorf("unable to assign group: %w", err)
				}
			}
		}

		user = created
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to create user", zap.String("email", params.Email), zap.Error(err))
		return nil, err
	}

	zap.L().Info("User created successfully",
		zap.Int64("id", user.Id),
		zap.String("email", user.Email),
		zap.String("hierarchy_list", user.HierarchyList))
	return user, nil
}

// GetChildrenIds returns the ids of every active descendant of userId.
func (s *Service) GetChildrenIds(ctx context.Context, userId int64) ([]int64, error) {
	user, err := getUserById(ctx, s.db, userId)
	if err != nil {
		return nil, err
	}
	path, err := hierarchy.Parse(user.HierarchyList)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, queryGetActiveSubtreeIds, path.SubtreePrefix(user.Id))
	if err != nil {
		return nil, fmt.Errorf("unable to query descendants: %w", err)
	}
	defer closeRows(rows)

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("unable to scan descendant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating descendant rows: %w", err)
	}
	return ids, nil
}

func (s *Service) GetDirectChildren(ctx context.Context, userId int64) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, queryGetDirectChildren, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query children: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan child row: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating child rows: %w", err)
	}
	return users, nil
}

type subtreeNode struct {
	id   int64
	role models.Role
	path hierarchy.Path
}

// loadSubtree reads every row (retired ones included) whose path passes
// through prefix.
func loadSubtree(ctx context.Context, tx *sql.Tx, prefix string) ([]subtreeNode, error) {
	rows, err := tx.QueryContext(ctx, queryGetSubtree, prefix)
	if err != nil {
		return nil, fmt.Errorf("unable to query subtree: %w", err)
	}
	defer closeRows(rows)

	var nodes []subtreeNode
	for rows.Next() {
		var node subtreeNode
		var role, list string
		if err := rows.Scan(&node.id, &role, &list); err != nil {
			return nil, fmt.Errorf("unable to scan subtree row: %w", err)
		}
		node.role = models.Role(role)
		if node.path, err = hierarchy.Parse(list); err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subtree rows: %w", err)
	}
	return nodes, nil
}

// TransferUpline re-parents userId, with its whole subtree, under newUplineId.
// Paths, group membership and the affected IBs' rebate rates change in one
// database transaction.
func (s *Service) TransferUpline(ctx context.Context, userId, newUplineId, editedBy int64) (*store.TransferResult, error) {
	zap.L().Info("Transferring upline",
		zap.Int64("user_id", userId),
		zap.Int64("new_upline_id", newUplineId),
		zap.Int64("edited_by", editedBy))

	result := &store.TransferResult{UserId: userId, NewUplineId: newUplineId}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUserById(ctx, tx, userId)
		if err != nil {
			return err
		}
		if user.UplineId != nil && *user.UplineId == newUplineId {
			return store.ErrSameUpline
		}
		if userId == newUplineId {
			return store.ErrHierarchyCycle
		}
		upline, err := getUserById(ctx, tx, newUplineId)
		if err != nil {
			return err
		}

		oldPath, err := hierarchy.Parse(user.HierarchyList)
		if err != nil {
			return err
		}
		uplinePath, err := hierarchy.Parse(upline.HierarchyList)
		if err != nil {
			return err
		}
		if uplinePath.Contains(userId) {
			return fmt.Errorf("%w: user %d is an ancestor of %d", store.ErrHierarchyCycle, userId, newUplineId)
		}
		newPath := uplinePath.Child(newUplineId)

		// Descendants are read before any path is rewritten.
		descendants, err := loadSubtree(ctx, tx, oldPath.SubtreePrefix(userId))
		if err != nil {
			return err
		}

		now := s.now()
		for _, node := range descendants {
			spliced, err := node.path.Splice(userId, newPath)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, queryUpdateUserPath, spliced.String(), now, node.id); err != nil {
				return fmt.Errorf("unable to update descendant %d path: %w", node.id, err)
			}
		}
		if _, err := tx.ExecContext(ctx, queryUpdateUserUpline, newUplineId, newPath.String(), now, userId); err != nil {
			return fmt.Errorf("unable to update user upline: %w", err)
		}

		groupId, err := getUserGroupId(ctx, tx, newUplineId)
		if err != nil {
			return err
		}
		if groupId != nil {
			if _, err := tx.ExecContext(ctx, queryUpsertGroupMember, *groupId, userId); err != nil {
				return fmt.Errorf("unable to move user group: %w", err)
			}
			for _, node := range descendants {
				if _, err := tx.ExecContext(ctx, queryUpsertGroupMember, *groupId, node.id); err != nil {
					return fmt.Errorf("unable to move descendant %d group: %w", node.id, err)
				}
			}
		}

		// Rates granted under the old upline no longer fit the new ceiling.
		var reset []int64
		if user.Role == models.RoleIB {
			reset = append(reset, userId)
		}
		for _, node := range descendants {
			if node.role == models.RoleIB {
				reset = append(reset, node.id)
			}
		}
		for _, id := range reset {
			res, err := tx.ExecContext(ctx, queryResetAllocations, editedBy, now, id)
			if err != nil {
				return fmt.Errorf("unable to reset allocations for %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to check rows affected: %w", err)
			}
			result.AllocationsReset += n
		}

		result.OldUplineId = user.UplineId
		result.DescendantsMoved = len(descendants)
		result.GroupId = groupId
		return nil
	})
	if err != nil {
		zap.L().Warn("Upline transfer failed", zap.Int64("user_id", userId), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Upline transferred",
		zap.Int64("user_id", userId),
		zap.Int64("new_upline_id", newUplineId),
		zap.Int("descendants_moved", result.DescendantsMoved),
		zap.Int64("allocations_reset", result.AllocationsReset))
	return result, nil
}

// RetireUser soft-deletes a user whose wallets are empty and settled. Direct children move
// up to the retired user's upline and every descendant path drops its id.
func (s *Service) RetireUser(ctx context.Context, userId, editedBy int64) error {
	zap.L().Info("Retiring user", zap.Int64("user_id", userId), zap.Int64("edited_by", editedBy))

	return s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUserById(ctx, tx, userId)
		if err != nil {
			return err
		}
		if user.IsRoot() {
			return store.ErrRootRetirement
		}

		wallets, err := getUserWallets(ctx, tx, userId)
		if err != nil {
			return err
		}
		for _, w := range wallets {
			if !w.Balance.IsZero() {
				return fmt.Errorf("%w: %s holds %s", store.ErrWalletNotEmpty, w.Type, w.Balance.String())
			}
		}

		// A pending withdrawal could still be refunded into a retired wallet.
		var pending int
		if err := tx.QueryRowContext(ctx, queryCountProcessingWalletTransactions, userId).Scan(&pending); err != nil {
			return fmt.Errorf("unable to check pending transactions: %w", err)
		}
		if pending > 0 {
			return fmt.Errorf("%w: user %d has %d processing wallet transactions", store.ErrInvalidAction, userId, pending)
		}

		path, err := hierarchy.Parse(user.HierarchyList)
		if err != nil {
			return err
		}
		descendants, err := loadSubtree(ctx, tx, path.SubtreePrefix(userId))
		if err != nil {
			return err
		}

		now := s.now()
		for _, node := range descendants {
			trimmed, err := node.path.Remove(userId)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, queryUpdateUserPath, trimmed.String(), now, node.id); err != nil {
				return fmt.Errorf("unable to update descendant %d path: %w", node.id, err)
			}
		}

		for _, node := range descendants {
			if parent, ok := node.path.Parent(); !ok || parent != userId {
				continue
			}
			trimmed, err := node.path.Remove(userId)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, queryUpdateUserUpline, *user.UplineId, trimmed.String(), now, node.id); err != nil {
				return fmt.Errorf("unable to re-parent child %d: %w", node.id, err)
			}
			if node.role == models.RoleIB {
				if _, err := tx.ExecContext(ctx, queryResetAllocations, editedBy, now, node.id); err != nil {
					return fmt.Errorf("unable to reset allocations for %d: %w", node.id, err)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, queryDeleteAllocations, userId); err != nil {
			return fmt.Errorf("unable to delete allocations: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryDeactivateUserTradingAccounts, now, userId); err != nil {
			return fmt.Errorf("unable to deactivate trading accounts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryDeleteGroupMember, userId); err != nil {
			return fmt.Errorf("unable to remove group membership: %w", err)
		}
		if _, err := tx.ExecContext(ctx, querySoftDeleteUser, now, now, userId); err != nil {
			return fmt.Errorf("unable to retire user: %w", err)
		}

		zap.L().Info("User retired",
			zap.Int64("user_id", userId),
			zap.Int("descendants_updated", len(descendants)))
		return nil
	})
}

func (s *Service) CreateGroup(ctx context.Context, name string) (*models.Group, error) {
	var group models.Group
	err := s.db.QueryRowContext(ctx, queryInsertGroup, name, s.now()).Scan(&group.Id, &group.Name, &group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("unable to insert group: %w", err)
	}
	return &group, nil
}

// AssignUserGroup puts userId and its whole subtree into groupId.
func (s *Service) AssignUserGroup(ctx context.Context, userId, groupId int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUserById(ctx, tx, userId)
		if err != nil {
			return err
		}
		path, err := hierarchy.Parse(user.HierarchyList)
		if err != nil {
			return err
		}
		descendants, err := loadSubtree(ctx, tx, path.SubtreePrefix(userId))
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, queryUpsertGroupMember, groupId, userId); err != nil {
			return fmt.Errorf("unable to assign group: %w", err)
		}
		for _, node := range descendants {
			if _, err := tx.ExecContext(ctx, queryUpsertGroupMember, groupId, node.id); err != nil {
				return fmt.Errorf("unable to assign group to %d: %w", node.id, err)
			}
		}
		return nil
	})
}

func (s *Service) GetUserGroupId(ctx context.Context, userId int64) (*int64, error) {
	return getUserGroupId(ctx, s.db, userId)
}

func getUserGroupId(ctx context.Context, q querier, userId int64) (*int64, error) {
	var groupId int64
	err := q.QueryRowContext(ctx, queryGetUserGroupId, userId).Scan(&groupId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query group membership: %w", err)
	}
	return &groupId, nil
}
