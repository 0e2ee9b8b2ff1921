package artifact

import "github.com/scivid/scivid/pkg/models"

// Typed load/save helpers for the named artifacts. Loads return an error for a
// missing or malformed file; completion checks treat any error as "not
// complete".

func (d Dir) LoadPaper() (*models.Paper, error) {
	var p models.Paper
	if err := ReadJSON(d.Path(PaperFile), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (d Dir) SavePaper(p *models.Paper) error {
	return WriteJSONAtomic(d.Path(PaperFile), p)
}

func (d Dir) LoadScript() (*models.Script, error) {
	var s models.Script
	if err := ReadJSON(d.Path(ScriptFile), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (d Dir) SaveScript(s *models.Script) error {
	return WriteJSONAtomic(d.Path(ScriptFile), s)
}

func (d Dir) SaveAudio(data []byte) error {
	return WriteFileAtomic(d.Path(AudioFile), data)
}

func (d Dir) LoadAudioMetadata() (*models.AudioMetadata, error) {
	var m models.AudioMetadata
	if err := ReadJSON(d.Path(AudioMetadataFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (d Dir) SaveAudioMetadata(m *models.AudioMetadata) error {
	return WriteJSONAtomic(d.Path(AudioMetadataFile), m)
}

func (d Dir) LoadVideoSentinel() (*models.VideoSentinel, error) {
	var s models.VideoSentinel
	if err := ReadJSON(d.Path(ClipsDirName+"/"+VideoSentinelFile), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (d Dir) SaveVideoSentinel(s *models.VideoSentinel) error {
	return WriteJSONAtomic(d.Path(ClipsDirName+"/"+VideoSentinelFile), s)
}

func (d Dir) SaveVideoMetadata(m *models.VideoMetadata) error {
	return WriteJSONAtomic(d.Path(ClipsDirName+"/"+VideoMetadataFile), m)
}

func (d Dir) LoadCaptionsMetadata() (*models.CaptionsMetadata, error) {
	var m models.CaptionsMetadata
	if err := ReadJSON(d.Path(CaptionsMetadataFile), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (d Dir) SaveCaptionsMetadata(m *models.CaptionsMetadata) error {
	return WriteJSONAtomic(d.Path(CaptionsMetadataFile), m)
}
