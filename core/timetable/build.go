package timetable

import "time"

// Build turns the last successful attempt into class, teacher and venue timetables.
// Teachers get the employee ID found in employeeIDs by name, if any.
func (g *Generator) Build(employeeIDs map[string]string, generatedAt time.Time) *Timetable {
	tt := &Timetable{}

	teacherGrids := make(map[string]Grid)
	venueGrids := make(map[string]Grid)
	for _, s := range g.sections {
		w := g.weeks[s.Section]
		class := ClassTimetable{
			Year:        s.Section.Year,
			Section:     s.Section.Name,
			Timetable:   make(Grid, len(Days)),
			FreeHours:   make(FreeHours),
			GeneratedAt: generatedAt,
		}
		for d, day := range Days {
			t := 0
			for _, slot := range Slots {
				if isLabel(slot) {
					class.Timetable.set(day, slot, Entry{Label: slot})
					continue
				}
				c := w[d][t]
				t++
				if c == nil {
					class.Timetable.set(day, slot, Entry{Label: Free})
					class.FreeHours[day] = append(class.FreeHours[day], slot)
					continue
				}
				cell := *c
				class.Timetable.set(day, slot, Entry{Cell: &cell})

				tg, ok := teacherGrids[c.Teacher]
				if !ok {
					tg = make(Grid)
					teacherGrids[c.Teacher] = tg
				}
				tg.set(day, slot, Entry{Cell: &Cell{Year: s.Section.Year, Section: s.Section.Name, Code: c.Code, Type: c.Type, Venue: c.Venue}})

				if c.Venue != "" {
					no := venueNo(c.Venue)
					vg, ok := venueGrids[no]
					if !ok {
						vg = make(Grid)
						venueGrids[no] = vg
					}
					vg.set(day, slot, Entry{Cell: &Cell{Year: s.Section.Year, Section: s.Section.Name, Code: c.Code, Teacher: c.Teacher}})
				}
			}
		}
		tt.Classes = append(tt.Classes, class)
	}

	for _, name := range g.teacherNames() {
		teacher := TeacherTimetable{
			TeacherName: name,
			Timetable:   teacherGrids[name],
			FreeHours:   freeHours(g.teachers[name]),
			GeneratedAt: generatedAt,
		}
		if id, ok := employeeIDs[name]; ok && id != "" {
			teacher.EmployeeID = &id
		}
		if teacher.Timetable == nil {
			teacher.Timetable = make(Grid)
		}
		tt.Teachers = append(tt.Teachers, teacher)
	}

	for _, v := range g.venues {
		grid := venueGrids[v.No]
		if grid == nil {
			grid = make(Grid)
		}
		tt.Venues = append(tt.Venues, VenueTimetable{
			VenueID:     v.No,
			VenueName:   v.Name,
			Timetable:   grid,
			FreeHours:   freeHours(g.rooms[v.No]),
			GeneratedAt: generatedAt,
		})
	}
	return tt
}

// freeHours lists the unbooked teaching slots of every day that has one.
func freeHours(booked *[5][8]bool) FreeHours {
	free := make(FreeHours)
	for d, day := range Days {
		for t, slot := range TeachingSlots {
			if booked == nil || !booked[d][t] {
				free[day] = append(free[day], slot)
			}
		}
	}
	return free
}
