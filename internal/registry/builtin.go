package registry

import "github.com/mkatops/ptcamp/internal/model"

const phaseupNotes = "This phase up can be run for all imaging observations ... " +
	"in all modes. There is no need to specify the target or " +
	"default gains as these are chosen by the script."

// Builtin returns the production PTUSE templates. Instruction prefixes keep
// their original trailing whitespace; the composer normalizes spacing when
// it renders instructions.
func Builtin() *Registry {
	return New(map[string]model.DefaultsRecord{
		"phaseupfb": {
			Owner:               "sarah",
			DescriptionFormat:   "MKAIV-405 Generic AR1 flatten {}",
			InstructionSet:      "run-obs-script /home/kat/katsdpscripts/observation/bf_phaseup.py ",
			Time:                "-t 600",
			Params:              "--horizon=20 --flatten-bandpass -n 'off'",
			IDs:                 "--proposal-id='MKAIV-330' --program-block-id='MKAIV-405' --issue-id='MKAIV-405'",
			Notes:               phaseupNotes,
			AntennaSpec:         "available",
			ControlledResources: "cbf,sdp",
		},
		"phaseup": {
			Owner:               "sarah",
			DescriptionFormat:   "MKAIV-405 Generic AR1 {}",
			InstructionSet:      "run-obs-script /home/kat/katsdpscripts/observation/bf_phaseup.py ",
			Time:                "-t 64",
			Params:              "--horizon=20 -n 'off'",
			IDs:                 "--proposal-id='MKAIV-330' --program-block-id='MKAIV-405' --issue-id='MKAIV-405'",
			Notes:               phaseupNotes,
			AntennaSpec:         "available",
			ControlledResources: "cbf,sdp",
		},
		"delaycal": {
			Owner:               "sarah",
			DescriptionFormat:   "MKAIV-405 Generic AR1 {}",
			InstructionSet:      "run-obs-script /home/kat/katsdpscripts/observation/calibrate_delays.py  '/home/kat/katsdpcatalogues/three_calib.csv' ",
			Time:                "-t 64",
			Params:              "--horizon=20 -n 'off'",
			IDs:                 "--proposal-id='MKAIV-584' --program-block-id='MKAIV-584' --issue-id='MKAIV-584'",
			Notes:               "",
			AntennaSpec:         "available",
			ControlledResources: "cbf,sdp",
		},
		"target": {
			Owner:               "sarah",
			DescriptionFormat:   "MKAIV-387: CBF {}",
			InstructionSet:      "run-obs-script /home/kat/katusescripts/ptuse/beamform_single_pulsar.py ",
			Time:                "-t 600",
			Params:              "-B 856 -F 1284 --horizon 20",
			IDs:                 "--proposal-id='FST-TRNS' --program-block-id='MKAIV-387' --issue-id='MKAIV-387'",
			AntennaSpec:         "available",
			ControlledResources: "cbf,sdp,ptuse_1",
		},
	})
}
