package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "invalid input")
	if err.Error() != "invalid input" {
		t.Errorf("expected 'invalid input', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "failed to validate")
	if wrapped.Error() != "failed to validate: invalid input" {
		t.Errorf("expected 'failed to validate: invalid input', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindUsedDevice, "nic eth0 already in use")
	if GetKind(err) != KindUsedDevice {
		t.Errorf("expected KindUsedDevice, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestIsKind(t *testing.T) {
	err := Errorf(KindTimeout, "device %s did not come up", "eth3")
	if !IsKind(err, KindTimeout) {
		t.Error("expected IsKind to match KindTimeout")
	}
	if IsKind(err, KindDriver) {
		t.Error("timeout error must stay distinct from a driver error")
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		KindUsedDevice:   "used_device",
		KindInvalidName:  "invalid_name",
		KindDriver:       "driver",
		KindTimeout:      "timeout",
		KindNotFound:     "not_found",
		KindVerification: "verification",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, kind.String(), want)
		}
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindUsedDevice, "nic in use")
	err = Attr(err, "device", "eth0")
	err = Attr(err, "owner", "storage")

	attrs := GetAttributes(err)
	if attrs["device"] != "eth0" {
		t.Errorf("expected eth0, got %v", attrs["device"])
	}
	if attrs["owner"] != "storage" {
		t.Errorf("expected storage, got %v", attrs["owner"])
	}

	wrapped := Wrap(err, KindInternal, "failed")
	wrapped = Attr(wrapped, "operation", "apply")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["device"] != "eth0" || allAttrs["operation"] != "apply" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("netlink: operation not permitted")
	err := Wrap(inner, KindDriver, "link up failed")
	if !errors.Is(err, inner) {
		t.Error("wrapped error should match inner via errors.Is")
	}
}
