package user

import "testing"

func TestEncodeAccessCode(t *testing.T) {
	tests := []struct {
		name    string
		icons   []int
		want    string
		wantErr error
	}{
		{name: "valid", icons: []int{1, 2, 3, 4}, want: "1,2,3,4"},
		{name: "order matters", icons: []int{4, 3, 2, 1}, want: "4,3,2,1"},
		{name: "repeats allowed", icons: []int{7, 7, 7, 7}, want: "7,7,7,7"},
		{name: "too short", icons: []int{1, 2, 3}, wantErr: ErrInvalidAccessCode},
		{name: "too long", icons: []int{1, 2, 3, 4, 5}, wantErr: ErrInvalidAccessCode},
		{name: "empty", icons: nil, wantErr: ErrInvalidAccessCode},
		{name: "zero id", icons: []int{1, 0, 3, 4}, wantErr: ErrInvalidAccessCode},
		{name: "negative id", icons: []int{1, -2, 3, 4}, wantErr: ErrInvalidAccessCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeAccessCode(tt.icons)
			if err != tt.wantErr {
				t.Fatalf("EncodeAccessCode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("EncodeAccessCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUser_VerifyAccessCode(t *testing.T) {
	var usr User
	if err := usr.SetAccessCode([]int{1, 2, 3, 4}); err != nil {
		t.Fatalf("SetAccessCode() error = %v", err)
	}

	tests := []struct {
		name  string
		icons []int
		want  bool
	}{
		{name: "match", icons: []int{1, 2, 3, 4}, want: true},
		{name: "wrong order", icons: []int{4, 3, 2, 1}},
		{name: "wrong icons", icons: []int{5, 6, 7, 8}},
		{name: "invalid length", icons: []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usr.VerifyAccessCode(tt.icons); got != tt.want {
				t.Errorf("VerifyAccessCode(%v) = %v, want %v", tt.icons, got, tt.want)
			}
		})
	}
}

func TestUser_AccessCodeIcons(t *testing.T) {
	var usr User
	if err := usr.SetAccessCode([]int{12, 3, 7, 12}); err != nil {
		t.Fatalf("SetAccessCode() error = %v", err)
	}
	icons := usr.AccessCodeIcons()
	want := []int{12, 3, 7, 12}
	if len(icons) != len(want) {
		t.Fatalf("AccessCodeIcons() = %v, want %v", icons, want)
	}
	for i := range want {
		if icons[i] != want[i] {
			t.Errorf("AccessCodeIcons()[%d] = %d, want %d", i, icons[i], want[i])
		}
	}
}

func TestUser_IsAdmin(t *testing.T) {
	admin := User{Role: RoleAdmin}
	kid := User{Role: RoleUser}
	if !admin.IsAdmin() {
		t.Error("admin.IsAdmin() = false")
	}
	if kid.IsAdmin() {
		t.Error("kid.IsAdmin() = true")
	}
}
