package store

// Table names of the hosted data service. The Directory maps each one onto
// its own key.
const (
	TableDonors            = "donors"
	TableBanks             = "blood_banks"
	TableCamps             = "donation_camps"
	TableCampRegistrations = "camp_registrations"
	TableRequests          = "blood_requests"
)

// Directory keys, one JSON array each.
const (
	KeySession           = "indiaBloodConnect_user"
	KeyRequests          = "indiaBloodConnect_requests"
	KeyDonors            = "indiaBloodConnect_all_donors"
	KeyBanks             = "indiaBloodConnect_all_banks"
	KeyCamps             = "indiaBloodConnect_all_camps"
	KeyCampRegistrations = "indiaBloodConnect_camp_registrations"
)

var tableKeys = map[string]string{
	TableDonors:            KeyDonors,
	TableBanks:             KeyBanks,
	TableCamps:             KeyCamps,
	TableCampRegistrations: KeyCampRegistrations,
	TableRequests:          KeyRequests,
}

// KeyFor returns the directory key of table; unknown tables get a prefixed key.
func KeyFor(table string) string {
	if k, ok := tableKeys[table]; ok {
		return k
	}
	return "indiaBloodConnect_" + table
}
