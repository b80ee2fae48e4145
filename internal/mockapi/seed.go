package mockapi

// Demo account created by SeedDemo.
const (
	DemoEmail    = "demo@dropit.local"
	DemoPassword = "DropIt2024"
)

var demoMarkers = []MarkerSeed{
	{Lat: 37.5666805, Lng: 126.9784147, Title: "Seoul City Hall clothing bin", Description: "East gate, next to the bike rack", Category: "clothes"},
	{Lat: 37.5704, Lng: 126.9769, Title: "Gwanghwamun bin", Description: "Exit 2, behind the bus stop", Category: "clothes"},
	{Lat: 37.5636, Lng: 126.9826, Title: "Myeongdong shoe drop", Description: "Alley entrance opposite the cathedral", Category: "shoes"},
	{Lat: 37.5598, Lng: 126.9753, Title: "Namdaemun market bin", Description: "Gate 5, ground floor", Category: "bags"},
	{Lat: 37.5547, Lng: 126.9707, Title: "Seoul Station bin", Description: "West plaza by the taxi rank", Category: "clothes"},
	{Lat: 37.5759, Lng: 126.9768, Title: "Gyeongbokgung bin", Description: "Community centre car park", Category: "etc"},
	{Lat: 37.5512, Lng: 126.9882, Title: "Namsan shoe bin", Description: "Cable car lower station", Category: "shoes"},
	{Lat: 37.5796, Lng: 126.9910, Title: "Jongno bag collection", Description: "Behind the district office", Category: "bags"},
}

// SeedDemo adds the demo account and a set of collection bins around
// Seoul City Hall. It is a no-op once any marker exists.
func (s *Server) SeedDemo() error {
	if s.MarkerCount() > 0 {
		return nil
	}
	if _, err := s.AddUser("Demo User", DemoEmail, DemoPassword); err != nil {
		return err
	}
	for _, m := range demoMarkers {
		m.OwnerEmail = DemoEmail
		s.AddMarker(m)
	}
	return nil
}
