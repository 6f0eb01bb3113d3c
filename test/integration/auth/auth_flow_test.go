// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/lockbird/lockbird/internal/auth"
)

// wireEnvelope mirrors the JSON envelope every endpoint returns.
type wireEnvelope struct {
	Status  string         `json:"status"`
	Code    string         `json:"code"`
	Details string         `json:"details"`
	Data    map[string]any `json:"data"`
}

// ipCounter hands each logical client its own address so the per-IP rate
// limiters never couple unrelated specs. Ginkgo runs specs serially in
// one process, so a plain counter suffices.
var ipCounter int

func nextIP() string {
	ipCounter++
	return fmt.Sprintf("10.1.%d.%d", ipCounter/250, ipCounter%250+1)
}

func doRequest(method, path, ip string, body any, cookies ...*http.Cookie) (*http.Response, wireEnvelope) {
	GinkgoHelper()

	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}

	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = resp.Body.Close() }()

	var envlp wireEnvelope
	Expect(json.NewDecoder(resp.Body).Decode(&envlp)).To(Succeed())
	return resp, envlp
}

func sessionCookie(resp *http.Response) *http.Cookie {
	GinkgoHelper()
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	Fail("no session cookie in response")
	return nil
}

// registerAndVerify walks a fresh account through signup and email
// verification so later specs can start from a verified user.
func registerAndVerify(email, password string) {
	GinkgoHelper()

	resp, _ := doRequest(http.MethodPost, "/api/v1/auth/register", nextIP(), map[string]any{
		"email":    email,
		"password": password,
	})
	Expect(resp.StatusCode).To(Equal(http.StatusCreated))

	token := env.mailer.VerificationToken(email)
	Expect(token).NotTo(BeEmpty())

	resp, _ = doRequest(http.MethodPost, "/api/v1/auth/verify-email", nextIP(), map[string]any{
		"token": token,
	})
	Expect(resp.StatusCode).To(Equal(http.StatusOK))
}

var _ = Describe("account lifecycle", Ordered, func() {
	const (
		email    = "ada@example.com"
		password = "correct horse battery staple"
	)
	var cookie *http.Cookie

	It("registers a new account", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/register", nextIP(), map[string]any{
			"email":    email,
			"password": password,
			"name":     "Ada",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(envlp.Status).To(Equal("success"))

		user, ok := envlp.Data["user"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(user["email"]).To(Equal(email))
		Expect(user["id"]).NotTo(BeEmpty())
	})

	It("rejects a duplicate registration", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/register", nextIP(), map[string]any{
			"email":    email,
			"password": password,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		Expect(envlp.Code).To(Equal("USER_EXISTS"))
	})

	It("refuses login before the email is verified", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/login", nextIP(), map[string]any{
			"email":    email,
			"password": password,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		Expect(envlp.Code).To(Equal("EMAIL_NOT_VERIFIED"))
	})

	It("verifies the email with the mailed token", func() {
		token := env.mailer.VerificationToken(email)
		Expect(token).NotTo(BeEmpty())

		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/verify-email", nextIP(), map[string]any{
			"token": token,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(envlp.Status).To(Equal("success"))
	})

	It("refuses the verification token a second time", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/verify-email", nextIP(), map[string]any{
			"token": env.mailer.VerificationToken(email),
		})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(envlp.Code).To(Equal("INVALID_TOKEN"))
	})

	It("rejects a wrong password", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/login", nextIP(), map[string]any{
			"email":    email,
			"password": "not the password",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(envlp.Code).To(Equal("INVALID_DATA"))
	})

	It("logs in and receives a session cookie", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/login", nextIP(), map[string]any{
			"email":    email,
			"password": password,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(envlp.Status).To(Equal("success"))

		cookie = sessionCookie(resp)
		Expect(cookie.Value).NotTo(BeEmpty())
		Expect(cookie.HttpOnly).To(BeTrue())
	})

	It("returns the current user for the session", func() {
		resp, envlp := doRequest(http.MethodGet, "/api/v1/user/me", nextIP(), nil, cookie)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		user, ok := envlp.Data["user"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(user["email"]).To(Equal(email))
	})

	It("reports no suspicious sessions for a fresh account", func() {
		resp, envlp := doRequest(http.MethodGet, "/api/v1/user/suspicious-sessions", nextIP(), nil, cookie)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(envlp.Data["ip_addresses"]).To(BeEmpty())
	})

	It("logs out and invalidates the session", func() {
		resp, _ := doRequest(http.MethodPost, "/api/v1/auth/logout", nextIP(), nil, cookie)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, envlp := doRequest(http.MethodGet, "/api/v1/user/me", nextIP(), nil, cookie)
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(envlp.Code).To(Equal("UNAUTHENTICATED"))
	})
})

var _ = Describe("password reset", Ordered, func() {
	const (
		email       = "grace@example.com"
		oldPassword = "first password here"
		newPassword = "second password here"
	)
	var cookie *http.Cookie

	BeforeAll(func() {
		registerAndVerify(email, oldPassword)

		resp, _ := doRequest(http.MethodPost, "/api/v1/auth/login", nextIP(), map[string]any{
			"email":    email,
			"password": oldPassword,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		cookie = sessionCookie(resp)
	})

	It("answers an unknown email with the same generic success", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/request-password-reset", nextIP(), map[string]any{
			"email": "nobody@example.com",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(envlp.Status).To(Equal("success"))
		Expect(env.mailer.ResetToken("nobody@example.com")).To(BeEmpty())
	})

	It("mails a reset token for a known email", func() {
		resp, _ := doRequest(http.MethodPost, "/api/v1/auth/request-password-reset", nextIP(), map[string]any{
			"email": email,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(env.mailer.ResetToken(email)).NotTo(BeEmpty())
	})

	It("resets the password with the mailed token", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/reset-password", nextIP(), map[string]any{
			"token":    env.mailer.ResetToken(email),
			"password": newPassword,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(envlp.Status).To(Equal("success"))
	})

	It("revokes existing sessions on reset", func() {
		resp, envlp := doRequest(http.MethodGet, "/api/v1/user/me", nextIP(), nil, cookie)
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(envlp.Code).To(Equal("UNAUTHENTICATED"))
	})

	It("refuses the old password after the reset", func() {
		resp, _ := doRequest(http.MethodPost, "/api/v1/auth/login", nextIP(), map[string]any{
			"email":    email,
			"password": oldPassword,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("accepts the new password", func() {
		resp, _ := doRequest(http.MethodPost, "/api/v1/auth/login", nextIP(), map[string]any{
			"email":    email,
			"password": newPassword,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("refuses the reset token a second time", func() {
		resp, envlp := doRequest(http.MethodPost, "/api/v1/auth/reset-password", nextIP(), map[string]any{
			"token":    env.mailer.ResetToken(email),
			"password": "third password here",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(envlp.Code).To(Equal("INVALID_TOKEN"))
	})
})

var _ = Describe("session anomaly detection", Ordered, func() {
	const (
		email    = "hopper@example.com"
		password = "yet another password"
		sharedIP = "198.51.100.7"
	)
	var cookie *http.Cookie

	BeforeAll(func() {
		registerAndVerify(email, password)

		user, err := env.repos.Users.GetByEmail(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())

		// Pile sessions onto one address past the reporting threshold.
		// Created through the service so each row gets a real token hash.
		for i := 0; i <= auth.AnomalyThreshold; i++ {
			_, _, err := env.sessions.Create(env.ctx, user, time.Now().Add(time.Hour), auth.SessionMetadata{
				IPAddress: sharedIP,
				UserAgent: "integration-test",
			})
			Expect(err).NotTo(HaveOccurred())
		}

		resp, _ := doRequest(http.MethodPost, "/api/v1/auth/login", nextIP(), map[string]any{
			"email":    email,
			"password": password,
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		cookie = sessionCookie(resp)
	})

	It("lists the overloaded address", func() {
		resp, envlp := doRequest(http.MethodGet, "/api/v1/user/suspicious-sessions", nextIP(), nil, cookie)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(envlp.Data["ip_addresses"]).To(ConsistOf(sharedIP))
		Expect(envlp.Data["checked_at"]).NotTo(BeEmpty())
	})
})

var _ = Describe("session expiry", func() {
	It("deletes an expired session when it is presented", func() {
		const email = "lovelace@example.com"
		registerAndVerify(email, "short lived session")

		user, err := env.repos.Users.GetByEmail(env.ctx, email)
		Expect(err).NotTo(HaveOccurred())

		_, token, err := env.sessions.Create(env.ctx, user, time.Now().Add(-time.Minute), auth.SessionMetadata{})
		Expect(err).NotTo(HaveOccurred())

		_, err = env.sessions.Validate(env.ctx, token)
		Expect(err).To(MatchError(auth.ErrInvalidToken))

		// The expired row is evicted on read, not merely rejected.
		_, err = env.repos.Sessions.GetByTokenHash(env.ctx, auth.HashToken(token))
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("request handling", func() {
	It("returns the error envelope for unknown routes", func() {
		resp, envlp := doRequest(http.MethodGet, "/api/v1/nope", nextIP(), nil)
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		Expect(envlp.Code).To(Equal("NOT_FOUND"))
	})

	It("rejects malformed JSON", func() {
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/auth/register", bytes.NewBufferString("{"))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", nextIP())

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("rate limits repeated credential attempts from one address", func() {
		ip := nextIP()
		var last *http.Response
		var envlp wireEnvelope
		for i := 0; i < 6; i++ {
			last, envlp = doRequest(http.MethodPost, "/api/v1/auth/login", ip, map[string]any{
				"email":    "anyone@example.com",
				"password": "whatever password",
			})
		}
		Expect(last.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(envlp.Code).To(Equal("RATE_LIMITED"))
		Expect(last.Header.Get("Retry-After")).NotTo(BeEmpty())
	})
})
