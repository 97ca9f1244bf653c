package koji

import (
	"strconv"
)

// XML-RPC values decode into interface{} trees; these helpers read them
// without panicking on nil or unexpected types.

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func toBuildInfo(m map[string]any) *BuildInfo {
	if m == nil {
		return nil
	}
	return &BuildInfo{
		ID:          asInt(m["id"]),
		PackageID:   asInt(m["package_id"]),
		PackageName: asString(m["package_name"]),
		Name:        asString(m["name"]),
		Version:     asString(m["version"]),
		Release:     asString(m["release"]),
		NVR:         asString(m["nvr"]),
		State:       asInt(m["state"]),
		OwnerName:   asString(m["owner_name"]),
		Extra:       asMap(m["extra"]),
	}
}

func toTagInfo(m map[string]any) *TagInfo {
	if m == nil {
		return nil
	}
	return &TagInfo{
		ID:     asInt(m["id"]),
		Name:   asString(m["name"]),
		Arches: asString(m["arches"]),
		Locked: asBool(m["locked"]),
	}
}

func toUserInfo(m map[string]any) *UserInfo {
	if m == nil {
		return nil
	}
	return &UserInfo{
		ID:           asInt(m["id"]),
		Name:         asString(m["name"]),
		KrbPrincipal: asString(m["krb_principal"]),
	}
}
