// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// In-memory repository fakes shared by the service tests. Each fake
// honors the repository contract, including ErrNotFound semantics, and
// exposes error injection fields for failure-path tests.

type memUserRepo struct {
	mu    sync.Mutex
	users map[ulid.ULID]*User

	createErr error
	getErr    error
	updateErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[ulid.ULID]*User)}
}

func (r *memUserRepo) Create(_ context.Context, user *User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return ErrUserExists
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id ulid.ULID) (*User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memUserRepo) MarkEmailVerified(_ context.Context, id ulid.ULID) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = time.Now()
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[ulid.ULID]*Session

	createErr    error
	getErr       error
	deleteErr    error
	lastUsedErr  error
	anomaliesErr error
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[ulid.ULID]*Session)}
}

func (r *memSessionRepo) Create(_ context.Context, session *Session) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *memSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			clone := *s
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memSessionRepo) UpdateLastUsed(_ context.Context, id ulid.ULID, lastUsed time.Time) error {
	if r.lastUsedErr != nil {
		return r.lastUsedErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastUsedAt = lastUsed
	return nil
}

func (r *memSessionRepo) Delete(_ context.Context, id ulid.ULID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *memSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.TokenHash == tokenHash {
			delete(r.sessions, id)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memSessionRepo) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *memSessionRepo) AnomalousIPs(_ context.Context, userID ulid.ULID, threshold int) ([]string, error) {
	if r.anomaliesErr != nil {
		return nil, r.anomaliesErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, s := range r.sessions {
		if s.UserID == userID && s.IPAddress != "" {
			counts[s.IPAddress]++
		}
	}
	var ips []string
	for ip, n := range counts {
		if n > threshold {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for id, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type memVerificationRepo struct {
	mu            sync.Mutex
	verifications map[ulid.ULID]*EmailVerification

	createErr error
	getErr    error
	deleteErr error
}

func newMemVerificationRepo() *memVerificationRepo {
	return &memVerificationRepo{verifications: make(map[ulid.ULID]*EmailVerification)}
}

func (r *memVerificationRepo) Create(_ context.Context, verification *EmailVerification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *verification
	r.verifications[verification.ID] = &clone
	return nil
}

func (r *memVerificationRepo) GetByTokenHash(_ context.Context, tokenHash string) (*EmailVerification, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.verifications {
		if v.TokenHash == tokenHash {
			clone := *v
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memVerificationRepo) Delete(_ context.Context, id ulid.ULID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.verifications[id]; !ok {
		return ErrNotFound
	}
	delete(r.verifications, id)
	return nil
}

func (r *memVerificationRepo) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, v := range r.verifications {
		if v.UserID == userID {
			delete(r.verifications, id)
		}
	}
	return nil
}

func (r *memVerificationRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for id, v := range r.verifications {
		if now.After(v.ExpiresAt) {
			delete(r.verifications, id)
			n++
		}
	}
	return n, nil
}

func (r *memVerificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.verifications)
}

type memResetRepo struct {
	mu     sync.Mutex
	resets map[ulid.ULID]*PasswordReset

	createErr error
	getErr    error
	deleteErr error
}

func newMemResetRepo() *memResetRepo {
	return &memResetRepo{resets: make(map[ulid.ULID]*PasswordReset)}
}

func (r *memResetRepo) Create(_ context.Context, reset *PasswordReset) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *reset
	r.resets[reset.ID] = &clone
	return nil
}

func (r *memResetRepo) GetByTokenHash(_ context.Context, tokenHash string) (*PasswordReset, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.resets {
		if p.TokenHash == tokenHash {
			clone := *p
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memResetRepo) Delete(_ context.Context, id ulid.ULID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resets[id]; !ok {
		return ErrNotFound
	}
	delete(r.resets, id)
	return nil
}

func (r *memResetRepo) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.resets {
		if p.UserID == userID {
			delete(r.resets, id)
		}
	}
	return nil
}

func (r *memResetRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for id, p := range r.resets {
		if now.After(p.ExpiresAt) {
			delete(r.resets, id)
			n++
		}
	}
	return n, nil
}

func (r *memResetRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.resets)
}

// memTx runs the transaction function directly against the live fakes.
// Rollback is not simulated; failure-path tests assert on the returned
// error, and the postgres tests cover real transactional behavior.
type memTx struct {
	repos Repos
	err   error
}

func (t *memTx) InTx(_ context.Context, fn func(Repos) error) error {
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}

type recordedEmail struct {
	To    string
	Name  string
	Token string
}

type memMailer struct {
	mu            sync.Mutex
	verifications []recordedEmail
	resets        []recordedEmail

	err error
}

func (m *memMailer) SendVerificationEmail(_ context.Context, to, name, token string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, recordedEmail{To: to, Name: name, Token: token})
	return nil
}

func (m *memMailer) SendPasswordResetEmail(_ context.Context, to, name, token string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, recordedEmail{To: to, Name: name, Token: token})
	return nil
}

// plainHasher is a transparent stand-in for the argon2id hasher; service
// tests assert on flow, the hasher tests cover the real thing.
type plainHasher struct {
	needsRehash bool
	hashErr     error
}

func (h *plainHasher) Hash(password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + password, nil
}

func (h *plainHasher) Verify(password, hash string) bool {
	return hash == "hashed:"+password
}

func (h *plainHasher) NeedsRehash(string) bool {
	return h.needsRehash
}
