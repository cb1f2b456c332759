package user

import (
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func TestMakeVerifyToken(t *testing.T) {
	secretKey = []byte("secret")
	passwordResetTimeoutDelta = 3 * 24 * time.Hour

	now := time.Now()
	usr := User{
		ID:        1,
		FullName:  "T",
		Email:     "t@test.test",
		Role:      RoleStudent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: null.TimeFrom(now),
	}
	_ = usr.SetPassword("pwd")

	validToken := makeToken(usr)

	// generate an expired token
	dayLate := passwordResetTimeoutDelta + (24 * time.Hour)
	nowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := makeToken(usr)
	nowFunc = time.Now // reset

	usedUsr := usr
	usedUsr.LastLogin = null.TimeFrom(now.Add(time.Minute))

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "invalid parts len", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "invalid base32", usr: usr, token: "hahaha-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid timestamp", usr: usr, token: "NRXWY-sigsig-sig", wantErr: errInvalidToken},
		{name: "invalid token", usr: usr, token: "HE4TS-sigsig-sig", wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "user logged in since", usr: usedUsr, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := verifyToken(tt.usr, tt.token); err != tt.wantErr {
				t.Errorf("verifyToken() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	id, err := decodeUID(EncodeUID(User{ID: 42}))
	if err != nil || id != 42 {
		t.Errorf("decodeUID() = %d, %v; want 42", id, err)
	}
	if _, err := decodeUID("!!"); err == nil {
		t.Error("decodeUID() expected an error")
	}
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "correct horse", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "similar to email", pwd: "jane.doe@mail.com", attrs: []string{"Jane", "jane.doe@mail.com"}, want: pwdAttrSimTag},
		{name: "valid", pwd: "Tr0ub4dor&3", attrs: []string{"Jane", "jane.doe@mail.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.pwd, tt.attrs...); got != tt.want {
				t.Errorf("checkPassword() = %q, want %q", got, tt.want)
			}
		})
	}
}
