package conduit

// Field names a property stored on a host entity.
type Field string

// Fields written and read on conduit and container entities.
const (
	FieldMode         Field = "ic_mode"
	FieldNetworkID    Field = "ic_network_id"
	FieldConnections  Field = "ic_connection_list"
	FieldContainer    Field = "ic_container"
	FieldChannel      Field = "ic_channel"
	FieldPriority     Field = "ic_priority"
	FieldFilterList   Field = "ic_filter_list"
	FieldFilterMode   Field = "ic_filter_mode"
	FieldTransferRate Field = "ic_transfer_rate"
	FieldBounds       Field = "ic_bound"
	FieldIsNew        Field = "ic_is_new"

	// FieldLinkedConduits is stored on containers.
	FieldLinkedConduits Field = "ic_connected_conduits"
)
