// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tendollarbond/murmauth/internal/auth"
	"github.com/tendollarbond/murmauth/internal/guest"
	"github.com/tendollarbond/murmauth/internal/rpc"
	"github.com/tendollarbond/murmauth/internal/web"
)

// fakeDirectory stands in for the LDAP directory: one known user with a
// fixed password and group set.
type fakeDirectory struct {
	username string
	dn       string
	password string
	groups   []string
}

func (f *fakeDirectory) FindUser(_ context.Context, username string) (string, bool, error) {
	if username == f.username {
		return f.dn, true, nil
	}
	return "", false, nil
}

func (f *fakeDirectory) BindUser(_ context.Context, dn, password string) (bool, error) {
	return dn == f.dn && password == f.password, nil
}

func (f *fakeDirectory) FindGroups(_ context.Context, userDN string) ([]string, error) {
	return f.groups, nil
}

var (
	tokenPattern    = regexp.MustCompile(`name="session" value="([0-9a-v]+)"`)
	passwordPattern = regexp.MustCompile(`<code>([0-9a-v]{20})</code>`)
)

var _ = Describe("authentication flow", func() {
	var (
		rpcServer *httptest.Server
		webServer *httptest.Server
	)

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))

		directory := &fakeDirectory{
			username: "bob",
			dn:       "cn=bob,ou=people,dc=example,dc=org",
			password: "hunter2",
			groups:   []string{"staff"},
		}

		manager := guest.NewManager(guest.Config{
			TTL:        4 * time.Hour,
			NamePrefix: "[guest] ",
		}, logger)

		dispatcher := auth.NewDispatcher(
			auth.NewDirectoryAuthenticator(directory, logger),
			manager,
		)

		rpcServer = httptest.NewServer(rpc.NewRouter(dispatcher))
		DeferCleanup(rpcServer.Close)

		handler, err := web.NewHandler(manager, "voice.example.org", logger)
		Expect(err).NotTo(HaveOccurred())

		webServer = httptest.NewServer(handler.Routes())
		DeferCleanup(webServer.Close)
	})

	authenticate := func(username, password string) map[string]any {
		GinkgoHelper()

		body := `{"name":"` + username + `","password":"` + password + `"}`
		resp, err := http.Post(rpcServer.URL+"/v1/authenticate", "application/json",
			strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var decoded map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
		return decoded
	}

	It("accepts a directory user with their groups", func() {
		result := authenticate("bob", "hunter2")
		Expect(result["id"]).To(Equal(float64(853927864)))
		Expect(result["groups"]).To(Equal([]any{"staff"}))
	})

	It("rejects bad directory credentials with id -1", func() {
		result := authenticate("bob", "wrong")
		Expect(result["id"]).To(Equal(float64(-1)))
		Expect(result).NotTo(HaveKey("groups"))
	})

	It("walks a guest from shared link to voice login", func() {
		By("an administrator issuing a session link")
		resp, err := http.PostForm(webServer.URL+"/guest-sessions",
			url.Values{"issued_by": {"alice"}})
		Expect(err).NotTo(HaveOccurred())
		page, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())

		match := tokenPattern.FindStringSubmatch(string(page))
		Expect(match).To(HaveLen(2), "session page must embed the token")
		token := match[1]

		By("the guest claiming a username")
		resp, err = http.PostForm(webServer.URL+"/guest-claims",
			url.Values{"session": {token}, "username": {"wanderer"}})
		Expect(err).NotTo(HaveOccurred())
		page, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		match = passwordPattern.FindStringSubmatch(string(page))
		Expect(match).To(HaveLen(2), "claim page must show the one-time password")
		password := match[1]

		By("the voice server authenticating the guest")
		result := authenticate("wanderer", password)
		Expect(result["id"]).To(Equal(float64(auth.UsernameToID("wanderer"))))
		Expect(result["groups"]).To(Equal([]any{guest.GuestGroup}))
		Expect(result["display_name"]).To(Equal("[guest] wanderer"))

		By("a second claim for the same name being refused")
		resp, err = http.PostForm(webServer.URL+"/guest-claims",
			url.Values{"session": {token}, "username": {"wanderer"}})
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
	})

	It("prefers the directory over a guest with the same name", func() {
		By("a guest claiming the name of a directory user")
		resp, err := http.PostForm(webServer.URL+"/guest-sessions", url.Values{})
		Expect(err).NotTo(HaveOccurred())
		page, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		token := tokenPattern.FindStringSubmatch(string(page))[1]

		resp, err = http.PostForm(webServer.URL+"/guest-claims",
			url.Values{"session": {token}, "username": {"bob"}})
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		By("the directory user still logging in as themselves")
		result := authenticate("bob", "hunter2")
		Expect(result["groups"]).To(Equal([]any{"staff"}))
		Expect(result).NotTo(HaveKey("display_name"))
	})
})
