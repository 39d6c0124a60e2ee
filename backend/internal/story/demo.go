package story

// EnchantedKingdomChapters returns the three-chapter demo dataset used by
// the seeder and the end-to-end tests. Chapter 1 introduces five characters,
// four locations, two objects, three events, four relationships and two plot
// threads; chapter 2 adds two characters and revisits Elena and Marcus
// (deliberately spelled "ELENA" to exercise name resolution); chapter 3
// resolves a thread.
func EnchantedKingdomChapters(projectID string) []*ChapterAnalysis {
	return []*ChapterAnalysis{
		{
			ProjectID:     projectID,
			ChapterNumber: 1,
			Version:       1,
			Summary:       "Elena finds the Sunstone Amulet in the Whispering Woods while unrest brews at the gates of Veyra.",
			Mood:          "wonder",
			Tension:       "rising",
			Characters: []Character{
				{Name: "Elena", Role: "protagonist", Description: "A young mage apprenticed to the court", Traits: []string{"curious", "impulsive"}, Motivations: []string{"master her gift"}},
				{Name: "Marcus", Role: "ally", Description: "Captain of the royal guard", Traits: []string{"loyal", "stern"}},
				{Name: "Queen Isolde", Role: "ruler", Description: "Sovereign of the Enchanted Kingdom"},
				{Name: "Caius", Role: "advisor", Description: "The queen's spymaster", Traits: []string{"calculating"}},
				{Name: "Willa", Role: "minor", Description: "Innkeeper of the Gilded Stag"},
			},
			Locations: []Location{
				{Name: "Castle Argent", Type: "interior", Description: "Seat of the crown"},
				{Name: "Whispering Woods", Type: "exterior", Description: "An old forest where magic pools"},
				{Name: "Veyra City", Type: "exterior", Description: "The capital"},
				{Name: "The Gilded Stag", Type: "interior", Description: "An inn by the east gate", ContainedIn: "Veyra City"},
			},
			Objects: []Object{
				{Name: "Sunstone Amulet", Type: "macguffin", Description: "A warm amber stone that hums near ley lines", Significance: "Key to the old wards", Owner: "Elena"},
				{Name: "Oath-Blade", Type: "weapon", Description: "Marcus's ceremonial sword", Owner: "Marcus"},
			},
			Events: []Event{
				{Name: "Elena finds the amulet", Type: "revelation", Description: "The amulet sings to Elena beneath the roots", Characters: []string{"Elena"}, Location: "Whispering Woods"},
				{Name: "Skirmish at the east gate", Type: "conflict", Description: "Guards clash with smugglers", Characters: []string{"Marcus", "Caius"}, Location: "Veyra City"},
				{Name: "The queen's summons", Type: "action", Description: "Isolde calls Elena to court", Characters: []string{"Queen Isolde", "Elena"}, Location: "Castle Argent"},
			},
			Relationships: []Relationship{
				{Source: "Elena", SourceType: LabelCharacter, Target: "Marcus", TargetType: LabelCharacter, Type: "friends_with", Sentiment: "positive", Strength: 0.9, Description: "Childhood friends"},
				{Source: "Marcus", SourceType: LabelCharacter, Target: "Queen Isolde", TargetType: LabelCharacter, Type: "serves", Sentiment: "positive", Strength: 0.85},
				{Source: "Caius", SourceType: LabelCharacter, Target: "Queen Isolde", TargetType: LabelCharacter, Type: "serves", Sentiment: "neutral", Strength: 0.7},
				{Source: "Elena", SourceType: LabelCharacter, Target: "Sunstone Amulet", TargetType: LabelObject, Type: "possesses", Sentiment: "positive", Strength: 0.8},
			},
			PlotThreads: []PlotThread{
				{Name: "The amulet's awakening", Status: StatusIntroduced, Description: "The Sunstone stirs after a century", RelatedCharacters: []string{"Elena"}},
				{Name: "Unrest in Veyra", Status: StatusIntroduced, Description: "Smugglers arm the lower wards", RelatedCharacters: []string{"Marcus", "Caius"}},
			},
		},
		{
			ProjectID:     projectID,
			ChapterNumber: 2,
			Version:       1,
			Summary:       "The exiled prince Pyrrhus returns in secret; Elena's bond with the amulet deepens.",
			Mood:          "foreboding",
			Tension:       "high",
			Characters: []Character{
				{Name: "ELENA", Description: "Now marked by the amulet's light"},
				{Name: "Marcus", Description: "Promoted to warden of the east gate"},
				{Name: "Pyrrhus", Role: "antagonist", Description: "The exiled prince, returned under a false name", Traits: []string{"charming", "bitter"}},
				{Name: "Sable", Role: "minor", Description: "A spy in Caius's employ"},
			},
			Locations: []Location{
				{Name: "The Gilded Stag", Description: "Pyrrhus takes a room under a false name"},
			},
			Events: []Event{
				{Name: "Pyrrhus returns", Type: "revelation", Description: "Sable recognizes the exiled prince", Characters: []string{"Pyrrhus", "Sable"}, Location: "The Gilded Stag"},
				{Name: "The amulet flares", Type: "action", Description: "The Sunstone burns when Pyrrhus enters the city", Characters: []string{"Elena", "Marcus"}, Location: "Veyra City"},
			},
			Relationships: []Relationship{
				{Source: "Elena", SourceType: LabelCharacter, Target: "Marcus", TargetType: LabelCharacter, Type: "friends_with", Sentiment: "positive", Strength: 0.95, Description: "Bound tighter by the amulet's secret"},
				{Source: "Sable", SourceType: LabelCharacter, Target: "Caius", TargetType: LabelCharacter, Type: "reports_to", Sentiment: "neutral", Strength: 0.6},
			},
			PlotThreads: []PlotThread{
				{Name: "The amulet's awakening", Status: StatusDeveloping},
				{Name: "The prince's return", Status: StatusIntroduced, Description: "Pyrrhus plots his restoration", RelatedCharacters: []string{"Pyrrhus", "Sable"}},
			},
			TemporalMarkers: []TemporalMarker{
				{ID: "ek-tm-1", Type: "flashback", Description: "Pyrrhus's banishment, ten years past", FromTime: "ten years ago", ToTime: "ten years ago", AffectedEvents: []string{"Pyrrhus returns"}},
			},
		},
		{
			ProjectID:     projectID,
			ChapterNumber: 3,
			Version:       1,
			Summary:       "Marcus breaks the smuggling ring; the amulet chooses Elena.",
			Mood:          "resolve",
			Tension:       "peak",
			Characters: []Character{
				{Name: "Elena"},
				{Name: "Marcus"},
				{Name: "Pyrrhus"},
			},
			Events: []Event{
				{Name: "Raid on the lower wards", Type: "conflict", Description: "The guard sweeps the smuggler dens", Characters: []string{"Marcus"}, Location: "Veyra City"},
				{Name: "The amulet chooses", Type: "revelation", Description: "The Sunstone binds itself to Elena", Characters: []string{"Elena"}, Location: "Castle Argent"},
			},
			Relationships: []Relationship{
				{Source: "Pyrrhus", SourceType: LabelCharacter, Target: "Elena", TargetType: LabelCharacter, Type: "rival_of", Sentiment: "negative", Strength: 0.7},
			},
			PlotThreads: []PlotThread{
				{Name: "Unrest in Veyra", Status: StatusResolved},
				{Name: "The amulet's awakening", Status: StatusClimax},
			},
			StateChanges: []StateChange{
				{EntityID: "sunstone amulet", EntityType: LabelObject, Attribute: "significance", OldValue: "Key to the old wards", NewValue: "Bound to Elena", Reason: "The amulet chose its bearer"},
			},
		},
	}
}
