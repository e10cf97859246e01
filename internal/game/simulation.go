package game

// Advance runs one tick of the simulation and returns what happened.
//
// Order within a tick: spawn, displace and steer monsters while rebuilding the
// threat queue and checking for the loss, fire at the closest monsters, then
// move bullets and resolve hits. Once the round has ended Advance does nothing
// until the state is Reset. A non-finite displacement is ignored.
func Advance(s *State, in Input) []Event {
	if s.Status != StatusRunning {
		return nil
	}

	s.Tick++
	s.RoundTicks++
	var events []Event

	if !in.Displacement.IsFinite() {
		in.Displacement = Point{}
	}

	events = s.spawn(events)

	events, lost := s.moveMonsters(events, in.Displacement)
	if lost {
		return events
	}

	events = s.fire(events)
	events = s.moveBullets(events)

	return events
}

// spawn counts down to the next monster and places it on a random admissible
// grid point with a random archetype.
func (s *State) spawn(events []Event) []Event {
	s.SpawnCountdown--
	if s.SpawnCountdown > 0 {
		return events
	}
	s.SpawnCountdown = s.cfg.SpawnInterval

	p := s.Zone.Pick(s.rng)
	archetype := s.rng.Intn(len(s.cfg.Archetypes))

	h, ok := s.SpawnMonster(p, archetype)
	if !ok {
		return events
	}
	return append(events, NewEvent(EventTypeMonsterSpawned, s.Tick, MonsterSpawnedPayload{
		Monster:   h,
		Archetype: s.cfg.Archetypes[archetype].Name,
		Position:  p,
	}))
}

// moveMonsters applies the pending displacement, steers every monster one step
// toward the mage and queues it by distance. The first monster touching the
// mage ends the round.
func (s *State) moveMonsters(events []Event, displacement Point) ([]Event, bool) {
	s.queue.Clear()
	s.handles = s.Monsters.Handles(s.handles[:0])

	mage := s.Mage.Bounds()
	for _, h := range s.handles {
		m, _ := s.Monsters.Get(h)
		m.Pos = m.Pos.Add(displacement)

		next, dist := StepToward(m.Pos, s.Mage.Pos, s.cfg.MonsterStep)
		m.Pos = next

		if Intersects(mage, m.Bounds()) {
			s.Status = StatusEnded
			return append(events, NewEvent(EventTypeGameOver, s.Tick, GameOverPayload{
				Monster:  h,
				Position: m.Pos,
				Round:    s.Round,
				Kills:    s.Kills,
				Ticks:    s.RoundTicks,
			})), true
		}

		s.queue.Push(MonsterRange{Monster: h, Range: dist})
	}
	return events, false
}

// fire counts down to the next volley and aims up to BulletsPerVolley bullets
// at the closest queued monsters.
func (s *State) fire(events []Event) []Event {
	s.FireCountdown--
	if s.FireCountdown > 0 {
		return events
	}
	s.FireCountdown = s.cfg.FireInterval

	for n := 0; n < s.cfg.BulletsPerVolley && !s.queue.IsEmpty(); n++ {
		r := s.queue.Pop()
		m, ok := s.Monsters.Get(r.Monster)
		if !ok {
			continue
		}
		b := s.FireBullet(m.Pos)
		if b == nil {
			break
		}
		events = append(events, NewEvent(EventTypeBulletFired, s.Tick, BulletFiredPayload{
			Bullet:  b.ID,
			Monster: r.Monster,
			Origin:  b.Pos,
			Target:  b.Target,
		}))
	}
	return events
}

// moveBullets advances every bullet and tests it against every live monster.
// Both lists are walked from the back so removals never skip an element.
func (s *State) moveBullets(events []Event) []Event {
	for i := len(s.Bullets) - 1; i >= 0; i-- {
		b := s.Bullets[i]
		reason := ExpireExhausted
		if b.Advance() {
			reason = ExpireArrived
		}

		box := b.Bounds()
		s.handles = s.Monsters.Handles(s.handles[:0])
		for j := len(s.handles) - 1; j >= 0; j-- {
			h := s.handles[j]
			m, _ := s.Monsters.Get(h)
			if !Intersects(box, m.Bounds()) {
				continue
			}

			pos := m.Pos
			s.Monsters.Remove(h)
			s.Kills++
			s.TotalKills++
			b.Range = 0
			reason = ExpireHit
			events = append(events, NewEvent(EventTypeMonsterKilled, s.Tick, MonsterKilledPayload{
				Monster:  h,
				Bullet:   b.ID,
				Position: pos,
			}))
		}

		if b.Alive() {
			continue
		}
		events = append(events, NewEvent(EventTypeBulletExpired, s.Tick, BulletExpiredPayload{
			Bullet:   b.ID,
			Position: b.Pos,
			Reason:   reason,
		}))
		copy(s.Bullets[i:], s.Bullets[i+1:])
		s.Bullets[len(s.Bullets)-1] = nil
		s.Bullets = s.Bullets[:len(s.Bullets)-1]
	}
	return events
}
