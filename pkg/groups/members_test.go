package groups

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectGroupExists(mock sqlmock.Sqlmock, groupID int64, exists bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM user_groups WHERE id = \$1\)`).
		WithArgs(groupID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectIsMember(mock sqlmock.Sqlmock, groupID, userID int64, member bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM user_group_members WHERE group_id = \$1 AND user_id = \$2\)`).
		WithArgs(groupID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(member))
}

func TestAddUserToGroup(t *testing.T) {
	t.Run("adds new member", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 7, true)
		expectIsMember(mock, 7, 5, false)
		mock.ExpectQuery(`INSERT INTO user_group_members`).
			WithArgs(int64(7), int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))

		member, err := svc.AddUserToGroup(context.Background(), 7, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(7), member.GroupID)
		assert.Equal(t, int64(5), member.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate membership is already exists", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 7, true)
		expectIsMember(mock, 7, 5, true)

		_, err := svc.AddUserToGroup(context.Background(), 7, 5)
		assert.True(t, IsAlreadyExists(err))
	})

	t.Run("losing an insert race is already exists", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 7, true)
		expectIsMember(mock, 7, 5, false)
		mock.ExpectQuery(`INSERT INTO user_group_members`).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := svc.AddUserToGroup(context.Background(), 7, 5)
		assert.True(t, IsAlreadyExists(err))
	})

	t.Run("absent group is not found", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 99, false)

		_, err := svc.AddUserToGroup(context.Background(), 99, 5)
		assert.True(t, IsNotFound(err))
	})
}

func TestRemoveUserFromGroup(t *testing.T) {
	t.Run("removes existing member", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 7, true)
		mock.ExpectExec(`DELETE FROM user_group_members WHERE group_id = \$1 AND user_id = \$2`).
			WithArgs(int64(7), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		removed, err := svc.RemoveUserFromGroup(context.Background(), 7, 5)
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("removing non-member is a no-op", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 7, true)
		mock.ExpectExec(`DELETE FROM user_group_members WHERE group_id = \$1 AND user_id = \$2`).
			WithArgs(int64(7), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		removed, err := svc.RemoveUserFromGroup(context.Background(), 7, 5)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("absent group is not found", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 99, false)

		_, err := svc.RemoveUserFromGroup(context.Background(), 99, 5)
		assert.True(t, IsNotFound(err))
	})
}

func TestListGroupMembers(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	expectGroupExists(mock, 7, true)
	rows := sqlmock.NewRows([]string{"id", "group_id", "user_id", "created_at"}).
		AddRow(int64(1), int64(7), int64(5), time.Now()).
		AddRow(int64(2), int64(7), int64(6), time.Now())
	mock.ExpectQuery(`FROM user_group_members(\s+)WHERE group_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	members, err := svc.ListGroupMembers(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, int64(5), members[0].UserID)
}

func TestListUserGroups(t *testing.T) {
	t.Run("membership in no groups yields empty list", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		mock.ExpectQuery(`JOIN user_group_members m ON m\.group_id = g\.id`).
			WithArgs(int64(5)).
			WillReturnRows(groupRows())

		result, err := svc.ListUserGroups(context.Background(), 5)
		require.NoError(t, err)
		assert.Empty(t, result)
	})
}

func TestIsUserMember(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	expectIsMember(mock, 7, 5, true)

	member, err := svc.IsUserMember(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestBulkAddUsers(t *testing.T) {
	t.Run("partial failures do not abort the loop", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 7, true)
		// user 5 is new, user 6 is already a member, user 8 is new.
		expectIsMember(mock, 7, 5, false)
		mock.ExpectQuery(`INSERT INTO user_group_members`).
			WithArgs(int64(7), int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
		expectIsMember(mock, 7, 6, true)
		expectIsMember(mock, 7, 8, false)
		mock.ExpectQuery(`INSERT INTO user_group_members`).
			WithArgs(int64(7), int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), time.Now()))

		result, err := svc.BulkAddUsers(context.Background(), 7, []int64{5, 6, 8})
		require.NoError(t, err)
		assert.Equal(t, []int64{5, 8}, result.Succeeded)
		assert.Equal(t, map[int64]string{6: "Already a member"}, result.Failed)
	})

	t.Run("absent group fails the whole call", func(t *testing.T) {
		svc, mock, done := newTestService(t)
		defer done()

		expectGroupExists(mock, 99, false)

		_, err := svc.BulkAddUsers(context.Background(), 99, []int64{5})
		assert.True(t, IsNotFound(err))
	})
}

func TestBulkRemoveUsers(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	expectGroupExists(mock, 7, true)
	mock.ExpectExec(`DELETE FROM user_group_members WHERE group_id = \$1 AND user_id = \$2`).
		WithArgs(int64(7), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM user_group_members WHERE group_id = \$1 AND user_id = \$2`).
		WithArgs(int64(7), int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	result, err := svc.BulkRemoveUsers(context.Background(), 7, []int64{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, result.Succeeded)
	assert.Equal(t, map[int64]string{6: "Not a member"}, result.Failed)
}
