// body-tracker - track people using a depth sensor
//  Copyright (C) 2025, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package sensor

import "fmt"

// JointID indexes Skeleton.Joints.
type JointID int

const (
	JointPelvis JointID = iota
	JointSpineNavel
	JointSpineChest
	JointNeck
	JointClavicleLeft
	JointShoulderLeft
	JointElbowLeft
	JointWristLeft
	JointHandLeft
	JointHandTipLeft
	JointThumbLeft
	JointClavicleRight
	JointShoulderRight
	JointElbowRight
	JointWristRight
	JointHandRight
	JointHandTipRight
	JointThumbRight
	JointHipLeft
	JointKneeLeft
	JointAnkleLeft
	JointFootLeft
	JointHipRight
	JointKneeRight
	JointAnkleRight
	JointFootRight
	JointHead
	JointNose
	JointEyeLeft
	JointEarLeft
	JointEyeRight
	JointEarRight
)

var jointNames = [JointCount]string{
	"pelvis", "spine-navel", "spine-chest", "neck",
	"clavicle-left", "shoulder-left", "elbow-left", "wrist-left",
	"hand-left", "handtip-left", "thumb-left",
	"clavicle-right", "shoulder-right", "elbow-right", "wrist-right",
	"hand-right", "handtip-right", "thumb-right",
	"hip-left", "knee-left", "ankle-left", "foot-left",
	"hip-right", "knee-right", "ankle-right", "foot-right",
	"head", "nose", "eye-left", "ear-left", "eye-right", "ear-right",
}

func (j JointID) String() string {
	if j >= 0 && int(j) < JointCount {
		return jointNames[j]
	}
	return fmt.Sprintf("joint-%d", int(j))
}

// Bones lists the joint pairs that make up a skeleton, parent first.
var Bones = [][2]JointID{
	{JointPelvis, JointSpineNavel},
	{JointSpineNavel, JointSpineChest},
	{JointSpineChest, JointNeck},
	{JointNeck, JointHead},
	{JointHead, JointNose},
	{JointHead, JointEyeLeft},
	{JointHead, JointEarLeft},
	{JointHead, JointEyeRight},
	{JointHead, JointEarRight},
	{JointSpineChest, JointClavicleLeft},
	{JointClavicleLeft, JointShoulderLeft},
	{JointShoulderLeft, JointElbowLeft},
	{JointElbowLeft, JointWristLeft},
	{JointWristLeft, JointHandLeft},
	{JointHandLeft, JointHandTipLeft},
	{JointWristLeft, JointThumbLeft},
	{JointSpineChest, JointClavicleRight},
	{JointClavicleRight, JointShoulderRight},
	{JointShoulderRight, JointElbowRight},
	{JointElbowRight, JointWristRight},
	{JointWristRight, JointHandRight},
	{JointHandRight, JointHandTipRight},
	{JointWristRight, JointThumbRight},
	{JointPelvis, JointHipLeft},
	{JointHipLeft, JointKneeLeft},
	{JointKneeLeft, JointAnkleLeft},
	{JointAnkleLeft, JointFootLeft},
	{JointPelvis, JointHipRight},
	{JointHipRight, JointKneeRight},
	{JointKneeRight, JointAnkleRight},
	{JointAnkleRight, JointFootRight},
}
