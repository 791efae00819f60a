package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "size mismatch with path",
			err:  SizeMismatch([]string{"info", "enc_key"}, 32, 31),
			want: []string{"[validate]", "size_mismatch", "info.enc_key", "expected exactly 32 bytes, got 31"},
		},
		{
			name: "native failure carries code",
			err:  Native(-108, "version mismatch"),
			want: []string{"[call]", "native_failure", "(code -108)", "version mismatch"},
		},
		{
			name: "null result",
			err:  NullResult([]string{"entries", "[2]", "key"}),
			want: []string{"[decode]", "null_result", "entries.[2].key"},
		},
		{
			name: "wrapped cause",
			err:  Wrap(PhaseDecode, KindOutOfBounds, stderrors.New("boom"), "read payload"),
			want: []string{"[decode]", "out_of_bounds", "read payload", "caused by: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, substr := range tt.want {
				if !strings.Contains(msg, substr) {
					t.Errorf("message %q missing %q", msg, substr)
				}
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := stderrors.New("alloc failed")
	err := New(PhaseEncode, KindAllocation).
		Path("entries", "[0]", "value").
		Detail("wanted %d bytes", 512).
		Cause(cause).
		Build()

	if err.Phase != PhaseEncode || err.Kind != KindAllocation {
		t.Errorf("phase/kind = %s/%s", err.Phase, err.Kind)
	}
	if err.Detail != "wanted 512 bytes" {
		t.Errorf("detail = %q", err.Detail)
	}
	if !stderrors.Is(err, err) {
		t.Error("error does not match itself")
	}
	if stderrors.Unwrap(err) != cause {
		t.Error("cause not unwrapped")
	}
}

func TestPredicates(t *testing.T) {
	validation := InvalidInput([]string{"key"}, "empty")
	native := Native(-101, "no such key")
	decoding := NullResult(nil)

	if !IsValidation(validation) || IsValidation(native) || IsValidation(decoding) {
		t.Error("IsValidation misclassifies")
	}
	if !IsNative(native) || IsNative(validation) {
		t.Error("IsNative misclassifies")
	}
	if !IsDecoding(decoding) || IsDecoding(validation) {
		t.Error("IsDecoding misclassifies")
	}
	if code := NativeCode(native); code != -101 {
		t.Errorf("NativeCode = %d, want -101", code)
	}
	if code := NativeCode(validation); code != 0 {
		t.Errorf("NativeCode of non-native = %d, want 0", code)
	}
	if NativeCode(stderrors.New("plain")) != 0 {
		t.Error("NativeCode of plain error should be 0")
	}
}

func TestIsMatchesPhaseAndKind(t *testing.T) {
	a := HandleReleased("entries")
	b := &Error{Phase: PhaseValidate, Kind: KindHandleReleased}
	if !stderrors.Is(a, b) {
		t.Error("same phase and kind should match")
	}
	c := &Error{Phase: PhaseDecode, Kind: KindHandleReleased}
	if stderrors.Is(a, c) {
		t.Error("different phase should not match")
	}
}
