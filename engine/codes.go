package engine

// Result codes reported by engine completions. Zero is success; the rest are
// the engine-detected fault codes this layer transports without interpreting.
const (
	CodeOK              int32 = 0
	CodeAccessDenied    int32 = -100
	CodeNoSuchKey       int32 = -101
	CodeNoSuchData      int32 = -103
	CodeDataExists      int32 = -104
	CodeNoSuchEntry     int32 = -106
	CodeEntryExists     int32 = -107
	CodeVersionMismatch int32 = -108
	CodeInvalidHandle   int32 = -1000
	CodeBadArguments    int32 = -1001
	CodeNoSuchFunction  int32 = -1002
)

func codeDesc(code int32) string {
	switch code {
	case CodeOK:
		return ""
	case CodeAccessDenied:
		return "access denied"
	case CodeNoSuchKey:
		return "no such key"
	case CodeNoSuchData:
		return "no such data"
	case CodeDataExists:
		return "data already exists"
	case CodeNoSuchEntry:
		return "no such entry"
	case CodeEntryExists:
		return "entry already exists"
	case CodeVersionMismatch:
		return "version mismatch"
	case CodeInvalidHandle:
		return "invalid or released handle"
	case CodeBadArguments:
		return "malformed call arguments"
	case CodeNoSuchFunction:
		return "no such native function"
	default:
		return "unknown engine fault"
	}
}
