package mdataffi

// FuncID is the closed enumeration of native operations. Each value
// corresponds to one exported symbol of the engine; String returns that
// symbol name.
type FuncID uint32

const (
	FnInfoSerialise FuncID = iota
	FnInfoDeserialise
	FnPut
	FnGetVersion
	FnSerialisedSize
	FnGetValue
	FnListEntries
	FnListKeys
	FnListValues
	FnMutateEntries
	FnListPermissions
	FnListPermissionSets
	FnListUserPermissions
	FnSetUserPermissions
	FnDelUserPermissions
	FnPermissionsNew
	FnPermissionsLen
	FnPermissionsGet
	FnPermissionsInsert
	FnPermissionsFree
	FnEntriesNew
	FnEntriesInsert
	FnEntriesLen
	FnEntriesGet
	FnEntriesFree
	FnEntryActionsNew
	FnEntryActionsInsert
	FnEntryActionsUpdate
	FnEntryActionsDelete
	FnEntryActionsFree
	FnEncodeMetadata

	fnCount // sentinel, keep last
)

var funcNames = [fnCount]string{
	FnInfoSerialise:       "mdata_info_serialise",
	FnInfoDeserialise:     "mdata_info_deserialise",
	FnPut:                 "mdata_put",
	FnGetVersion:          "mdata_get_version",
	FnSerialisedSize:      "mdata_serialised_size",
	FnGetValue:            "mdata_get_value",
	FnListEntries:         "mdata_list_entries",
	FnListKeys:            "mdata_list_keys",
	FnListValues:          "mdata_list_values",
	FnMutateEntries:       "mdata_mutate_entries",
	FnListPermissions:     "mdata_list_permissions",
	FnListPermissionSets:  "mdata_list_permission_sets",
	FnListUserPermissions: "mdata_list_user_permissions",
	FnSetUserPermissions:  "mdata_set_user_permissions",
	FnDelUserPermissions:  "mdata_del_user_permissions",
	FnPermissionsNew:      "mdata_permissions_new",
	FnPermissionsLen:      "mdata_permissions_len",
	FnPermissionsGet:      "mdata_permissions_get",
	FnPermissionsInsert:   "mdata_permissions_insert",
	FnPermissionsFree:     "mdata_permissions_free",
	FnEntriesNew:          "mdata_entries_new",
	FnEntriesInsert:       "mdata_entries_insert",
	FnEntriesLen:          "mdata_entries_len",
	FnEntriesGet:          "mdata_entries_get",
	FnEntriesFree:         "mdata_entries_free",
	FnEntryActionsNew:     "mdata_entry_actions_new",
	FnEntryActionsInsert:  "mdata_entry_actions_insert",
	FnEntryActionsUpdate:  "mdata_entry_actions_update",
	FnEntryActionsDelete:  "mdata_entry_actions_delete",
	FnEntryActionsFree:    "mdata_entry_actions_free",
	FnEncodeMetadata:      "mdata_encode_metadata",
}

func (f FuncID) String() string {
	if f < fnCount {
		return funcNames[f]
	}
	return "mdata_unknown"
}

// FuncCount returns the number of declared native operations.
func FuncCount() int { return int(fnCount) }
