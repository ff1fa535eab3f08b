package util

import "time"

// Operators work from Colombia; console timestamps are shown in local time.
var campaignLocation *time.Location

func init() {
	var err error
	campaignLocation, err = time.LoadLocation("America/Bogota")
	if err != nil {
		campaignLocation = time.FixedZone("COT", -5*60*60)
	}
}

func ToCampaignTime(t time.Time) time.Time {
	return t.In(campaignLocation)
}

// ConsoleStamp formats t the way log console lines display it.
func ConsoleStamp(t time.Time) string {
	return t.In(campaignLocation).Format("15:04:05")
}
